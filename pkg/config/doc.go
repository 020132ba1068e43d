// Package config loads typed configuration from environment variables.
//
// Structs are annotated with github.com/caarlos0/env/v11 tags; dotenv files
// are read with github.com/joho/godotenv. Load caches one parsed value per
// type for the lifetime of the process, Parse always re-reads the environment.
//
//	var pgCfg pg.Config
//	config.MustLoad(&pgCfg)
package config
