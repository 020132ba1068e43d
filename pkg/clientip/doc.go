// Package clientip records the caller address of quota API requests so
// rate-limit denials can be traced to their source.
package clientip
