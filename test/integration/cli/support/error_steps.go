package support

import (
	"fmt"
	"os"
	"strings"

	"github.com/cucumber/godog"
)

// anUnreadableImage writes a file with a .png name that is not an image.
func (testCtx *TestContext) anUnreadableImage() error {
	path := testCtx.GetTempFile(".png")
	if err := os.WriteFile(path, []byte("not an image"), 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	testCtx.ImagePath = path
	return nil
}

// aMissingImage points the scenario image at a path that does not exist.
func (testCtx *TestContext) aMissingImage() error {
	testCtx.ImagePath = testCtx.GetTempFile("-missing.png")
	return nil
}

// anInvalidConfiguration writes a config file that fails validation.
func (testCtx *TestContext) anInvalidConfiguration(key, value string) error {
	path := testCtx.GetTempFile(".yaml")
	parts := strings.SplitN(key, ".", 2)
	content := fmt.Sprintf("%s: %s\n", key, value)
	if len(parts) == 2 {
		content = fmt.Sprintf("%s:\n  %s: %s\n", parts[0], parts[1], value)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	testCtx.ConfigPath = path
	return nil
}

// theErrorShouldSuggestAvailableCommands verifies cobra's unknown command hint.
func (testCtx *TestContext) theErrorShouldSuggestAvailableCommands() error {
	if err := testCtx.theCommandShouldFail(); err != nil {
		return err
	}
	return testCtx.theErrorShouldMention("unknown command")
}

// theOutputShouldContainVersionInformation verifies version output.
func (testCtx *TestContext) theOutputShouldContainVersionInformation() error {
	for _, want := range []string{"htr version", "Commit:", "Date:"} {
		if err := testCtx.theOutputShouldContain(want); err != nil {
			return err
		}
	}
	return nil
}

// theOutputShouldListAvailableSubcommands verifies help output.
func (testCtx *TestContext) theOutputShouldListAvailableSubcommands() error {
	for _, want := range []string{"train", "validate", "infer", "config"} {
		if err := testCtx.theOutputShouldContain(want); err != nil {
			return err
		}
	}
	return nil
}

// RegisterErrorSteps registers error handling steps.
func (testCtx *TestContext) RegisterErrorSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an unreadable image$`, testCtx.anUnreadableImage)
	sc.Step(`^a missing image$`, testCtx.aMissingImage)
	sc.Step(`^a configuration with "([^"]*)" set to "([^"]*)"$`, testCtx.anInvalidConfiguration)
	sc.Step(`^the error should suggest available commands$`, testCtx.theErrorShouldSuggestAvailableCommands)
	sc.Step(`^the output should contain version information$`, testCtx.theOutputShouldContainVersionInformation)
	sc.Step(`^the output should list available subcommands$`, testCtx.theOutputShouldListAvailableSubcommands)
}
