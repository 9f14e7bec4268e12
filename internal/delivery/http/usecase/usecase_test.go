package usecase

import (
	"context"
	"sync"
	"testing"

	internalEntity "github.com/evandrarf/neurocase-be/internal/entity"
	"github.com/evandrarf/neurocase-be/internal/pkg/llm"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeGenerator struct {
	mu      sync.Mutex
	calls   [][]llm.Message
	opts    []llm.Options
	respond func(n int, messages []llm.Message, opts llm.Options) (llm.Result, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.opts = append(f.opts, opts)
	n := len(f.calls)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return textResult("Tutor reply."), nil
	}
	return respond(n, messages, opts)
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGenerator) Last() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func textResult(s string) llm.Result {
	return llm.Result{Kind: llm.ResultText, Text: s, Model: "test-model"}
}

func emptyResult() llm.Result {
	return llm.Result{Kind: llm.ResultEmpty, Model: "test-model"}
}

func jsonResult(obj map[string]any) llm.Result {
	return llm.Result{Kind: llm.ResultJSON, JSON: obj, Text: "{}", Model: "test-model"}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&internalEntity.CaseSession{},
		&internalEntity.MCQ{},
		&internalEntity.ReasoningSession{},
		&internalEntity.UserCaseHistory{},
		&internalEntity.JobRun{},
	))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func systemText(messages []llm.Message) string {
	var out string
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			out += m.Content + "\n"
		}
	}
	return out
}
