package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/gohtr/internal/models"
	"github.com/MeKo-Tech/gohtr/internal/pipeline"
	"github.com/MeKo-Tech/gohtr/internal/testutil"
	"github.com/cucumber/godog"
)

// tinyNetworkConfig keeps training fast enough for scenarios.
const tinyNetworkConfig = `log_level: warn
training:
  batch_size: 4
  early_stopping: 1
  max_epochs: 1
  augment: false
  seed: 5
image:
  width: 32
  height: 8
inference:
  padding: 4
network:
  kernels: [3, 3]
  features: [2, 4]
  pools: [[2, 2], [1, 4]]
  hidden: 4
  layers: 1
  learning_rate: 0.01
`

var defaultScenarioWords = []string{
	"a", "b", "ab", "ba", "aa", "bb", "abc", "cab", "bca", "c",
	"ca", "ac", "cc", "bc", "cb", "acb", "bac", "abb", "caa", "bcc",
}

// aSyntheticDataset writes the default word set as an IAM-style dataset.
func (testCtx *TestContext) aSyntheticDataset() error {
	return testCtx.aSyntheticDatasetWithWords(strings.Join(defaultScenarioWords, ","))
}

// aSyntheticDatasetWithWords writes the comma-separated words as a dataset.
func (testCtx *TestContext) aSyntheticDatasetWithWords(words string) error {
	dir := testCtx.GetTempDir("data")
	if err := testutil.WriteDataset(dir, testutil.WordEntries(strings.Split(words, ","))); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	testCtx.DataDir = dir
	return nil
}

// aTinyNetworkConfiguration writes a configuration file with a small network.
func (testCtx *TestContext) aTinyNetworkConfiguration() error {
	path := testCtx.GetTempFile(".yaml")
	if err := os.WriteFile(path, []byte(tinyNetworkConfig), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	testCtx.ConfigPath = path
	return nil
}

// anEmptyModelDirectory creates a fresh model directory.
func (testCtx *TestContext) anEmptyModelDirectory() error {
	dir := testCtx.GetTempDir("model")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	testCtx.ModelDir = dir
	return nil
}

// aWordImageShowing renders text as a word image.
func (testCtx *TestContext) aWordImageShowing(text string) error {
	path := testCtx.GetTempFile(".png")
	if err := testutil.WritePNG(path, testutil.GenerateWordImage(text)); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	testCtx.ImagePath = path
	return nil
}

// aTrainedModel trains the tiny network on the scenario dataset.
func (testCtx *TestContext) aTrainedModel() error {
	if testCtx.DataDir == "" {
		if err := testCtx.aSyntheticDataset(); err != nil {
			return err
		}
	}
	if testCtx.ConfigPath == "" {
		if err := testCtx.aTinyNetworkConfiguration(); err != nil {
			return err
		}
	}
	if testCtx.ModelDir == "" {
		if err := testCtx.anEmptyModelDirectory(); err != nil {
			return err
		}
	}
	if err := testCtx.iRunCommand("htr --config ${CONFIG} --data-dir ${DATA_DIR} --model-dir ${MODEL_DIR} train"); err != nil {
		return err
	}
	return testCtx.theCommandShouldSucceed()
}

// theModelDirectoryShouldContain checks for a file in the model directory.
func (testCtx *TestContext) theModelDirectoryShouldContain(name string) error {
	path := filepath.Join(testCtx.ModelDir, name)
	if !testutil.FileExists(path) {
		entries, _ := os.ReadDir(testCtx.ModelDir)
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return fmt.Errorf("%s not found in model directory (have %v)", name, names)
	}
	return nil
}

// theModelDirectoryShouldNotContain checks a file is absent from the model directory.
func (testCtx *TestContext) theModelDirectoryShouldNotContain(name string) error {
	if testutil.FileExists(filepath.Join(testCtx.ModelDir, name)) {
		return fmt.Errorf("%s unexpectedly present in model directory", name)
	}
	return nil
}

// theCharacterListShouldBe compares charList.txt byte for byte.
func (testCtx *TestContext) theCharacterListShouldBe(expected string) error {
	data, err := os.ReadFile(models.GetCharListPath(testCtx.ModelDir))
	if err != nil {
		return fmt.Errorf("failed to read character list: %w", err)
	}
	if string(data) != expected {
		return fmt.Errorf("character list is %q, expected %q", string(data), expected)
	}
	return nil
}

// theSummaryShouldRecordEpochs checks the number of epochs in summary.json.
func (testCtx *TestContext) theSummaryShouldRecordEpochs(epochs int) error {
	summary, err := pipeline.ReadSummary(models.GetSummaryPath(testCtx.ModelDir))
	if err != nil {
		return err
	}
	if summary.Epochs() != epochs {
		return fmt.Errorf("summary records %d epochs, expected %d", summary.Epochs(), epochs)
	}
	return nil
}

// RegisterDatasetSteps registers dataset, model and image fixture steps.
func (testCtx *TestContext) RegisterDatasetSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a synthetic dataset$`, testCtx.aSyntheticDataset)
	sc.Step(`^a synthetic dataset with the words "([^"]*)"$`, testCtx.aSyntheticDatasetWithWords)
	sc.Step(`^a tiny network configuration$`, testCtx.aTinyNetworkConfiguration)
	sc.Step(`^an empty model directory$`, testCtx.anEmptyModelDirectory)
	sc.Step(`^a word image showing "([^"]*)"$`, testCtx.aWordImageShowing)
	sc.Step(`^a trained model$`, testCtx.aTrainedModel)
	sc.Step(`^the model directory should contain "([^"]*)"$`, testCtx.theModelDirectoryShouldContain)
	sc.Step(`^the model directory should not contain "([^"]*)"$`, testCtx.theModelDirectoryShouldNotContain)
	sc.Step(`^the character list should be "([^"]*)"$`, testCtx.theCharacterListShouldBe)
	sc.Step(`^the summary should record (\d+) epochs?$`, testCtx.theSummaryShouldRecordEpochs)
}
