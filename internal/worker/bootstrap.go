package worker

import (
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/pickperfect/api/internal/audio"
	"github.com/pickperfect/api/internal/config"
	"github.com/pickperfect/api/internal/events"
	"github.com/pickperfect/api/internal/logger"
	"github.com/pickperfect/api/internal/media"
	"github.com/pickperfect/api/internal/repository"
	"github.com/pickperfect/api/internal/service"
)

// Deps are the process-wide clients the analysis worker is built from
type Deps struct {
	Storage   media.ObjectDownloader
	Jobs      repository.JobRepository
	Publisher events.Publisher
	Logger    *logger.Logger
}

// RedisOpt converts the Redis settings for asynq
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewAnalysisPipeline wires retriever, transcoder, feature extractor and
// persistence into one analysis service.
func NewAnalysisPipeline(cfg *config.Config, deps Deps) *service.AnalysisService {
	return service.NewAnalysisService(service.AnalysisDeps{
		Retriever: media.NewRetriever(deps.Storage, cfg.Pipeline.ScratchDir, cfg.Pipeline.DownloadRetryWindow),
		Extractor: media.NewAudioExtractor(cfg.FFmpeg.Binary, cfg.FFmpeg.Timeout),
		Features:  audio.NewExtractor(),
		Jobs:      deps.Jobs,
		Publisher: deps.Publisher,
		Logger:    deps.Logger,
	}, cfg.Pipeline.MarkFailed)
}

// Setup builds the asynq server and a mux serving analysis tasks
func Setup(cfg *config.Config, deps Deps) (*asynq.Server, *asynq.ServeMux) {
	srv := NewServer(RedisOpt(cfg.Redis), cfg.Worker, deps.Logger)

	mux := asynq.NewServeMux()
	NewAnalysisWorker(NewAnalysisPipeline(cfg, deps), deps.Logger).Register(mux)

	return srv, mux
}

func asynqLogLevel(level logrus.Level) asynq.LogLevel {
	switch {
	case level >= logrus.DebugLevel:
		return asynq.DebugLevel
	case level == logrus.WarnLevel:
		return asynq.WarnLevel
	case level <= logrus.ErrorLevel:
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}
