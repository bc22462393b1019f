package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/chatdesk/internal/archive"
	appconfig "github.com/wolfman30/chatdesk/internal/config"
	"github.com/wolfman30/chatdesk/internal/messaging"
	"github.com/wolfman30/chatdesk/internal/notify"
	"github.com/wolfman30/chatdesk/internal/observability/metrics"
	"github.com/wolfman30/chatdesk/internal/weather"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

// BuildEmailSender picks the email provider. Missing credentials degrade to
// the stub sender, which only logs.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("SENDGRID_API_KEY not set; using stub email sender")
	case "ses":
		if awsCfg != nil {
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.EmailFrom,
				FromName:  cfg.EmailFromName,
			}, logger)
		}
		logger.Warn("AWS config unavailable; using stub email sender")
	}
	return notify.NewStubEmailSender(logger)
}

// BuildNotifier returns the handoff notifier for NOTIFY_MODE. The worker is
// nil in inline mode; otherwise the caller must Start it.
func BuildNotifier(cfg *appconfig.Config, email notify.EmailSender, awsCfg *aws.Config, m *metrics.ChatMetrics, logger *logging.Logger) (notify.Notifier, *notify.Worker, error) {
	inline := notify.NewInlineNotifier(email, logger)
	workerOpts := []notify.WorkerOption{
		notify.WithWorkerCount(cfg.NotifyWorkerCount),
		notify.WithWorkerMetrics(m),
	}
	switch cfg.NotifyMode {
	case "", "inline":
		return inline, nil, nil
	case "memory":
		queue := notify.NewMemoryQueue(100, 3, notify.WithQueueLogger(logger))
		return notify.NewQueueNotifier(queue, logger), notify.NewWorker(queue, inline, logger, workerOpts...), nil
	case "sqs":
		if cfg.NotifyQueueURL == "" || awsCfg == nil {
			return nil, nil, fmt.Errorf("bootstrap: NOTIFY_MODE=sqs requires NOTIFY_QUEUE_URL and AWS config")
		}
		queue := notify.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.NotifyQueueURL)
		workerOpts = append(workerOpts, notify.WithReceiveWaitSeconds(20))
		return notify.NewQueueNotifier(queue, logger), notify.NewWorker(queue, inline, logger, workerOpts...), nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown NOTIFY_MODE %q", cfg.NotifyMode)
	}
}

// BuildSMSSender returns Twilio when credentials are present, else a stub.
func BuildSMSSender(cfg *appconfig.Config, logger *logging.Logger) messaging.SMSSender {
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		return messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	}
	logger.Warn("twilio not configured; welcome texts are logged only")
	return messaging.NewStubSender(logger)
}

// BuildWeatherClient returns nil when no API key is configured, which makes
// weather questions deflect.
func BuildWeatherClient(cfg *appconfig.Config, logger *logging.Logger) weather.Client {
	if cfg.WeatherAPIKey == "" {
		return nil
	}
	return weather.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherBaseURL, cfg.WeatherTimeout, logger)
}

// BuildArchiver returns the S3 archive store, or nil without a bucket.
func BuildArchiver(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *archive.Store {
	if cfg.ArchiveBucket == "" || awsCfg == nil {
		return nil
	}
	client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
		if cfg.AWSEndpointOverride != "" {
			o.UsePathStyle = true
		}
	})
	return archive.NewStore(client, cfg.ArchiveBucket, archive.Options{
		ScrubPII: cfg.ArchiveScrubPII,
		Manifest: cfg.ArchiveManifest,
	}, logger)
}
