// Package s3mirror uploads written transcript artifacts to an S3-compatible
// bucket (AWS S3, DigitalOcean Spaces, MinIO).
//
// Objects are keyed as <prefix>/<file name>. A custom endpoint with path-style
// addressing supports self-hosted services.
package s3mirror
