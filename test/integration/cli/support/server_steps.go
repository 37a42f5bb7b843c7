package support

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cucumber/godog"
)

const serverReadyTimeout = 30 * time.Second

// lockedBuffer collects output of a background process.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// freeAddr reserves a loopback port and releases it for the process under test.
func freeAddr() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr, nil
}

// iStartTrainingInTheBackgroundWithMetrics starts an unbounded training run
// with the status server enabled and waits until /health answers.
func (testCtx *TestContext) iStartTrainingInTheBackgroundWithMetrics() error {
	addr, err := freeAddr()
	if err != nil {
		return fmt.Errorf("failed to reserve port: %w", err)
	}
	testCtx.MetricsAddr = addr

	parts, err := testCtx.commandArgs(
		"htr --config ${CONFIG} --data-dir ${DATA_DIR} --model-dir ${MODEL_DIR} train " +
			"--max-epochs 0 --early-stopping 1000 --metrics-addr " + addr)
	if err != nil {
		return err
	}

	cmd := exec.Command(parts[0], parts[1:]...) //nolint:gosec // G204: test binary with controlled args
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)
	out := &lockedBuffer{}
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start training: %w", err)
	}
	testCtx.BackgroundCmd = cmd
	testCtx.BackgroundOutput = out

	return testCtx.waitForServerReady()
}

func (testCtx *TestContext) waitForServerReady() error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(serverReadyTimeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get("http://" + testCtx.MetricsAddr + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("status server on %s not ready after %v\nOutput: %s",
		testCtx.MetricsAddr, serverReadyTimeout, testCtx.BackgroundOutput.String())
}

// iGET requests an endpoint of the status server.
func (testCtx *TestContext) iGET(endpoint string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+testCtx.MetricsAddr+endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s failed: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	return nil
}

// theResponseStatusShouldBe verifies the last HTTP status.
func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d\nBody: %s",
			expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldContain verifies the last HTTP body contains text.
func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// iInterruptTheTraining sends SIGINT and waits for the process to exit.
func (testCtx *TestContext) iInterruptTheTraining() error {
	if testCtx.BackgroundCmd == nil {
		return errors.New("no training is running")
	}
	if err := testCtx.BackgroundCmd.Process.Signal(syscall.SIGINT); err != nil {
		return fmt.Errorf("failed to interrupt training: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- testCtx.BackgroundCmd.Wait() }()
	select {
	case err := <-done:
		testCtx.LastError = err
		testCtx.LastExitCode = exitCode(err)
	case <-time.After(commandTimeout):
		_ = testCtx.BackgroundCmd.Process.Kill()
		return errors.New("training did not stop after SIGINT")
	}
	testCtx.LastOutput = testCtx.BackgroundOutput.String()
	testCtx.LastStdout = testCtx.LastOutput
	testCtx.BackgroundCmd = nil
	return nil
}

// stopBackground kills a background run left over by a failed scenario.
func (testCtx *TestContext) stopBackground() error {
	if testCtx.BackgroundCmd == nil || testCtx.BackgroundCmd.Process == nil {
		return nil
	}
	if err := testCtx.BackgroundCmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	_ = testCtx.BackgroundCmd.Wait()
	testCtx.BackgroundCmd = nil
	return nil
}

// RegisterServerSteps registers status server steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I start training in the background with metrics enabled$`,
		testCtx.iStartTrainingInTheBackgroundWithMetrics)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^I interrupt the training$`, testCtx.iInterruptTheTraining)
}
