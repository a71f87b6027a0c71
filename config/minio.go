package config

import (
	"os"
	"strconv"
	"sync"
)

var (
	minioOnce   sync.Once
	minioConfig *MinioConfig
)

type MinioConfig struct {
	AccessKey  string
	SecretKey  string
	Endpoint   string
	UseSSL     bool
	Region     string
	BucketName string
}

func GetMinioConfig() *MinioConfig {
	minioOnce.Do(func() {
		loadEnv()
		useSSL, _ := strconv.ParseBool(os.Getenv("MINIO_USE_SSL"))
		minioConfig = &MinioConfig{
			AccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey:  os.Getenv("MINIO_SECRET_KEY"),
			Endpoint:   os.Getenv("MINIO_ENDPOINT"),
			UseSSL:     useSSL,
			Region:     os.Getenv("MINIO_REGION"),
			BucketName: os.Getenv("MINIO_BUCKET_NAME"),
		}
	})
	return minioConfig
}
