package storagemeter

// Config holds the S3 settings of the bucket that stores organization files.
type Config struct {
	Bucket         string `env:"STORAGE_S3_BUCKET,required"`                     // Bucket holds every organization's uploads.
	Region         string `env:"STORAGE_S3_REGION" envDefault:"us-east-1"`       // Region of the bucket.
	AccessKeyID    string `env:"STORAGE_S3_ACCESS_KEY_ID"`                       // AccessKeyID is optional; the default AWS credential chain is used when empty.
	SecretKey      string `env:"STORAGE_S3_SECRET_KEY"`                          // SecretKey pairs with AccessKeyID.
	Endpoint       string `env:"STORAGE_S3_ENDPOINT"`                            // Endpoint targets S3-compatible services such as MinIO.
	ForcePathStyle bool   `env:"STORAGE_S3_FORCE_PATH_STYLE" envDefault:"false"` // ForcePathStyle is required by most S3-compatible services.
	PrefixFormat   string `env:"STORAGE_S3_PREFIX_FORMAT" envDefault:"orgs/%d/"` // PrefixFormat maps an organization ID to its key prefix.
}
