package testutil

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// IntegrationTestSuite provides a temp workspace, a bounded context and a
// test logger for end-to-end train/predict runs.
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.startTime = time.Now()
}

// SetupTest gives every test a fresh workspace and context
func (s *IntegrationTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 2*time.Minute)

	tempDir, err := os.MkdirTemp("", "tabula-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownTest runs after each test
func (s *IntegrationTestSuite) TearDownTest() {
	s.cancel()
	if s.tempDir != "" {
		_ = os.RemoveAll(s.tempDir)
	}
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the test context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the temporary directory path
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// Path joins elements under the temporary directory
func (s *IntegrationTestSuite) Path(elem ...string) string {
	return filepath.Join(append([]string{s.tempDir}, elem...)...)
}

// Logger returns a logger writing to the current test output
func (s *IntegrationTestSuite) Logger() *zap.Logger {
	return zaptest.NewLogger(s.T())
}

// WriteCSV writes a fixture file into the workspace
func (s *IntegrationTestSuite) WriteCSV(name string, rows ...[]string) string {
	return WriteCSV(s.T(), s.tempDir, name, rows...)
}
