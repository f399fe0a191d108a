package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AnTengye/orderledger/pkg/logger"
)

var (
	inputFile     string
	submitImage   string
	submitCaption string
)

var submitCmd = &cobra.Command{
	Use:   "submit [chat text]",
	Short: "Create an order from chat text or a screenshot",
	Long: `Create an order from pasted chat text. Without arguments the text is
read from stdin. With --image a screenshot is sent to the AI extractor and
--caption may carry the price and delivery remarks.`,
	RunE: runSubmit,
}

var manualCmd = &cobra.Command{
	Use:   "manual [Key=Value lines]",
	Short: "Record an order typed as Key=Value lines",
	Example: `  orderledger manual "ФИО=Иванов Иван" "Телефон=+375291234567" "Товар=Чехол" "Сумма=35 р."`,
	RunE: runManual,
}

func init() {
	submitCmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read the chat text from a file")
	manualCmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read the Key=Value lines from a file")
	submitCmd.Flags().StringVarP(&submitImage, "image", "i", "", "Screenshot file to extract the order from")
	submitCmd.Flags().StringVar(&submitCaption, "caption", "", "Caption sent along with the screenshot")
}

// inputText reads --file, else joins the arguments with sep, else reads
// stdin.
func inputText(cmd *cobra.Command, args []string, sep string) (string, error) {
	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", inputFile, err)
		}
		return string(data), nil
	}
	if len(args) > 0 {
		return strings.Join(args, sep), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := logger.WithSource(cmd.Context(), "cli")
	pipeline, err := newPipeline(ctx)
	if err != nil {
		return err
	}

	if submitImage != "" {
		data, err := os.ReadFile(submitImage)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		return printResponse(cmd, pipeline.SubmitImage(ctx, data, http.DetectContentType(data), submitCaption))
	}

	if submitCaption != "" {
		return errors.New("--caption only applies to --image submissions")
	}
	text, err := inputText(cmd, args, "\n")
	if err != nil {
		return err
	}
	return printResponse(cmd, pipeline.SubmitText(ctx, text))
}

func runManual(cmd *cobra.Command, args []string) error {
	ctx := logger.WithSource(cmd.Context(), "cli")
	pipeline, err := newPipeline(ctx)
	if err != nil {
		return err
	}

	// One argument per Key=Value line.
	text, err := inputText(cmd, args, "\n")
	if err != nil {
		return err
	}
	return printResponse(cmd, pipeline.SubmitManual(ctx, text))
}
