package forecasting

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
	"github.com/Kaustab2003/co2-emission-forecasting/pkg/storage"
)

// LoadModel resolves the model artifact location. An empty location yields
// the reference model, "s3://bucket/key" is downloaded with downloader and
// anything else is read from disk.
func LoadModel(ctx context.Context, location string, downloader storage.Downloader, logger *zap.Logger) (*emissions.LinearModel, error) {
	switch {
	case location == "":
		logger.Info("Using reference regression model")
		return emissions.DefaultLinearModel(), nil

	case strings.HasPrefix(location, "s3://"):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("%w: invalid model location %q", emissions.ErrModelUnavailable, location)
		}
		if downloader == nil {
			return nil, fmt.Errorf("%w: no S3 client configured for %q", emissions.ErrModelUnavailable, location)
		}

		buf := manager.NewWriteAtBuffer(nil)
		if _, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			return nil, fmt.Errorf("%w: failed to download %q: %v", emissions.ErrModelUnavailable, location, err)
		}

		model, err := emissions.ParseModel(bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded regression model from S3",
			zap.String("bucket", bucket),
			zap.String("key", key),
			zap.String("version", model.Version),
		)
		return model, nil

	default:
		model, err := emissions.LoadModel(location)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded regression model", zap.String("path", location), zap.String("version", model.Version))
		return model, nil
	}
}
