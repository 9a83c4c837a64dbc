// Package mainconfig centralizes the initialization shared by the api and
// worker binaries: AWS SDK setup, queue construction, Redis, and the LLM
// provider stack.
package mainconfig

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/shiftly-ai/agent-backend/internal/agent"
	appconfig "github.com/shiftly-ai/agent-backend/internal/config"
	"github.com/shiftly-ai/agent-backend/internal/jobs"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// LoadAWSConfig builds the shared AWS SDK configuration so both binaries get
// the same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				switch service {
				case sqs.ServiceID, bedrockruntime.ServiceID:
					return aws.Endpoint{
						URL:           endpoint,
						PartitionID:   "aws",
						SigningRegion: cfg.AWSRegion,
					}, nil
				default:
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
			},
		)
	}

	return awsCfg, nil
}

// BuildQueues wires the three job queues. With USE_MEMORY_QUEUE set they run
// in-process, which only makes sense when the api and worker share a binary
// or during local development; otherwise each queue needs its SQS URL.
func BuildQueues(cfg *appconfig.Config, awsCfg aws.Config) (map[string]jobs.Queue, error) {
	if cfg.UseMemoryQueue {
		return map[string]jobs.Queue{
			agent.QueueCRMSync:       jobs.NewMemoryQueue(0),
			agent.QueueBooking:       jobs.NewMemoryQueue(0),
			agent.QueueNotifications: jobs.NewMemoryQueue(0),
		}, nil
	}

	urls := map[string]string{
		agent.QueueCRMSync:       cfg.CRMSyncQueueURL,
		agent.QueueBooking:       cfg.BookingQueueURL,
		agent.QueueNotifications: cfg.NotificationQueueURL,
	}
	client := sqs.NewFromConfig(awsCfg)
	queues := make(map[string]jobs.Queue, len(urls))
	for name, url := range urls {
		if url == "" {
			return nil, fmt.Errorf("mainconfig: queue URL for %q is not configured", name)
		}
		queues[name] = jobs.NewSQSQueue(client, url)
	}
	return queues, nil
}

// NewRedisClient builds the shared Redis client, or nil when no address is
// configured.
func NewRedisClient(cfg *appconfig.Config) *redis.Client {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// NewLLMClient assembles the configured completion provider with its
// failover and returns the client plus the primary model id.
func NewLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (agent.LLMClient, string, error) {
	var (
		primary agent.LLMClient
		model   string
	)

	switch cfg.LLMProvider {
	case "gemini":
		client, err := agent.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, "", fmt.Errorf("mainconfig: init gemini client: %w", err)
		}
		primary = client
		model = cfg.GeminiModel
	default:
		primary = agent.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		model = cfg.BedrockModelID
	}

	var (
		fallback      agent.LLMClient
		fallbackModel string
	)
	if cfg.LLMProvider != "gemini" && cfg.GeminiAPIKey != "" {
		client, err := agent.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("gemini failover unavailable", "error", err.Error())
		} else {
			fallback = client
			fallbackModel = cfg.GeminiModel
		}
	}
	if fallback == nil && cfg.LLMProvider != "gemini" && cfg.BedrockFallbackModelID != "" {
		// Same Bedrock endpoint, cheaper model.
		fallback = primary
		fallbackModel = cfg.BedrockFallbackModelID
	}

	return agent.NewFallbackLLMClient(primary, fallback, fallbackModel, logger), model, nil
}
