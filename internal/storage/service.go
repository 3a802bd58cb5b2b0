// Package storage provides signed playback and upload URLs for audio
// objects in an R2-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Allowed MIME types for song uploads
const (
	MIMEAudioMPEG = "audio/mpeg"
	MIMEAudioWAV  = "audio/wav"
	MIMEAudioMP4  = "audio/mp4"
	MIMEAudioFLAC = "audio/flac"
)

// Validation errors
var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
	ErrInvalidArtistID = errors.New("invalid artist ID")
)

// AllowedMIMETypes maps allowed audio MIME types to their file extensions.
var AllowedMIMETypes = map[string]string{
	MIMEAudioMPEG: ".mp3",
	MIMEAudioWAV:  ".wav",
	MIMEAudioMP4:  ".m4a",
	MIMEAudioFLAC: ".flac",
}

// PlaybackURLValidity is how long a signed playback URL stays usable.
const PlaybackURLValidity = time.Hour

// SignedURL is a pre-signed URL with its expiry.
type SignedURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service generates signed URLs for an R2 bucket and deletes objects.
type Service struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	maxSizeBytes  int64
	timeNow       func() time.Time // For testability
}

// ServiceConfig holds configuration for the storage service.
type ServiceConfig struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	MaxSizeMB       int
}

// NewService creates a storage service with the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 50
	}

	// R2 uses the auto region and requires path-style addressing.
	s3Client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	presignClient := s3.NewPresignClient(s3Client)

	return &Service{
		s3Client:      s3Client,
		presignClient: presignClient,
		bucketName:    cfg.BucketName,
		maxSizeBytes:  int64(cfg.MaxSizeMB) * 1024 * 1024,
		timeNow:       time.Now,
	}, nil
}

// ValidateContentType checks if the content type is allowed.
func ValidateContentType(contentType string) error {
	if _, ok := AllowedMIMETypes[contentType]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// ValidateFileSize checks if the file size is within limits.
func (s *Service) ValidateFileSize(sizeBytes int64) error {
	if sizeBytes > s.maxSizeBytes {
		return ErrFileTooLarge
	}
	if sizeBytes <= 0 {
		return errors.New("file size must be positive")
	}
	return nil
}

// GenerateObjectKey creates a unique object key for a song upload.
// Pattern: songs/{artistID}/{slug}-{uuid}{ext}
func GenerateObjectKey(artistID, songName, contentType string) (string, error) {
	ext, ok := AllowedMIMETypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	artist := sanitizePathComponent(artistID)
	if artist == "" {
		return "", ErrInvalidArtistID
	}

	slug := sanitizePathComponent(strings.ReplaceAll(strings.ToLower(songName), " ", "-"))
	if slug == "" {
		slug = "track"
	}

	return fmt.Sprintf("songs/%s/%s-%s%s", artist, slug, uuid.New().String(), ext), nil
}

// sanitizePathComponent removes potentially dangerous characters from path components.
func sanitizePathComponent(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// SignPlaybackURL generates a pre-signed GET URL for streaming the object
// at key. The URL is valid for PlaybackURLValidity.
func (s *Service) SignPlaybackURL(ctx context.Context, key string) (*SignedURL, error) {
	if key == "" {
		return nil, errors.New("object key is required")
	}

	presignedReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = PlaybackURLValidity
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign playback request: %w", err)
	}

	return &SignedURL{
		URL:       presignedReq.URL,
		Key:       key,
		ExpiresAt: s.timeNow().Add(PlaybackURLValidity),
	}, nil
}

// SignUploadURL generates a pre-signed PUT URL for a direct song upload.
func (s *Service) SignUploadURL(ctx context.Context, artistID, songName, contentType string, sizeBytes int64) (*SignedURL, error) {
	if err := ValidateContentType(contentType); err != nil {
		return nil, err
	}
	if err := s.ValidateFileSize(sizeBytes); err != nil {
		return nil, err
	}

	key, err := GenerateObjectKey(artistID, songName, contentType)
	if err != nil {
		return nil, err
	}

	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(sizeBytes),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = 5 * time.Minute
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload request: %w", err)
	}

	return &SignedURL{
		URL:       presignedReq.URL,
		Key:       key,
		ExpiresAt: s.timeNow().Add(5 * time.Minute),
	}, nil
}

// DeleteObject removes the object at key from the bucket.
func (s *Service) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("object key is required")
	}

	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// BucketName returns the bucket the service signs URLs for.
func (s *Service) BucketName() string {
	return s.bucketName
}
