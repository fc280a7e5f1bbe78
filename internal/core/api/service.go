// Package api provides the gRPC FormRules service.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/caseflow/internal/core/config"
	"github.com/solatis/caseflow/internal/core/schemas"
	"github.com/solatis/caseflow/internal/rules"
)

// FormRulesService implements FormRulesServer.
// Thin orchestration layer delegating to the schema store and rule engine.
type FormRulesService struct {
	store   *schemas.Store
	engine  *rules.Engine
	cfg     *config.ServerConfig
	metrics *Metrics
	logger  *slog.Logger

	auditDir     string
	auditMutexes map[string]*sync.Mutex
	mutexLock    sync.Mutex
}

// NewFormRulesService creates service instance with dependencies.
// Auto-creates the evaluation audit directory if not exists.
func NewFormRulesService(store *schemas.Store, engine *rules.Engine, cfg *config.ServerConfig, metrics *Metrics, logger *slog.Logger) (*FormRulesService, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	auditDir := filepath.Join(cfg.DataDir, "evaluations")
	if err := os.MkdirAll(auditDir, 0o755); err != nil {
		return nil, err
	}

	return &FormRulesService{
		store:        store,
		engine:       engine,
		cfg:          cfg,
		metrics:      metrics,
		logger:       logger,
		auditDir:     auditDir,
		auditMutexes: make(map[string]*sync.Mutex),
	}, nil
}

// auditEntry is one line of the evaluation audit log.
type auditEntry struct {
	Time         time.Time `json:"time"`
	TenantID     string    `json:"tenant_id"`
	SchemaID     string    `json:"schema_id,omitempty"`
	Fields       int       `json:"fields"`
	AppliedRules int       `json:"applied_rules"`
	Hidden       []string  `json:"hidden"`
}

// getAuditMutex returns mutex for given filename, creating if not exists.
// Mutex map grows by one entry per day.
func (s *FormRulesService) getAuditMutex(filename string) *sync.Mutex {
	s.mutexLock.Lock()
	defer s.mutexLock.Unlock()

	if _, ok := s.auditMutexes[filename]; !ok {
		s.auditMutexes[filename] = &sync.Mutex{}
	}
	return s.auditMutexes[filename]
}

// audit appends entry to the daily JSONL file. Best-effort: failures are
// logged, never returned to the caller.
func (s *FormRulesService) audit(entry auditEntry) {
	filename := filepath.Join(s.auditDir, entry.Time.Format("2006-01-02.jsonl"))
	mu := s.getAuditMutex(filename)
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("audit log unavailable", "file", filename, "error", err)
		return
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(entry); err != nil {
		s.logger.Warn("audit write failed", "file", filename, "error", err)
	}
}

// observe records latency and, for failures, the error counter.
func (s *FormRulesService) observe(method string, start time.Time, err error) {
	s.metrics.Duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Errors.WithLabelValues(method, status.Code(err).String()).Inc()
	}
}

// toStruct converts a JSON-encodable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
