package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/raphaelgruber/agriassist/internal/client"
	"github.com/raphaelgruber/agriassist/internal/models"
	"github.com/spf13/cobra"
)

var (
	askAudioFile string
	askSpeakFile string
	askTopK      int
	askServerURL string
)

// errAnswerFailed is returned after a failure message was already printed.
var errAnswerFailed = errors.New("question could not be answered")

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long: `Ask a single question and print the answer with its sources.

The question is answered from the local index unless --server is given.
With --audio the question is read from a recorded audio file instead.
With --speak the answer is also synthesized to a WAV file.

Examples:
  agriassist ask "How to control aphids in mustard?"
  agriassist ask "When should I apply urea to wheat?" -k 5
  agriassist ask --audio question.wav --speak answer.wav
  agriassist ask "Best time to sow paddy in Bihar?" --server http://localhost:8585`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askAudioFile, "audio", "", "read the question from an audio file")
	askCmd.Flags().StringVar(&askSpeakFile, "speak", "", "write a spoken answer to this file")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of advisories to retrieve (overrides AGRI_TOP_K)")
	askCmd.Flags().StringVar(&askServerURL, "server", "", "ask a running agriassist-server instead of the local index")
}

func runAsk(cmd *cobra.Command, args []string) error {
	var question string
	var audio []byte
	switch {
	case askAudioFile != "":
		data, err := os.ReadFile(askAudioFile)
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		audio = data
	case len(args) == 1:
		question = args[0]
	default:
		return errors.New("provide a question or --audio")
	}

	var result *models.AnswerResult
	var err error
	if askServerURL != "" {
		result, err = askRemote(cmd, question, audio)
	} else {
		result, err = askLocal(cmd, question, audio)
	}
	if result != nil && (err == nil || result.Error != "") {
		fmt.Fprint(cmd.OutOrStdout(), formatAnswer(defaultTheme, *result))
	}
	if err != nil {
		if result != nil && result.Error != "" {
			// Already shown to the user; keep the exit status.
			logger.Debug("ask failed", "error", err)
			return errAnswerFailed
		}
		return err
	}

	if askSpeakFile != "" {
		if len(result.Audio) == 0 {
			return errors.New("no audio returned (is a TTS provider configured?)")
		}
		if err := os.WriteFile(askSpeakFile, result.Audio, 0o644); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), defaultTheme.hintStyle().Render("Spoken answer written to "+askSpeakFile))
	}
	return nil
}

func askLocal(cmd *cobra.Command, question string, audio []byte) (*models.AnswerResult, error) {
	if askTopK > 0 {
		cfg.TopK = askTopK
	}
	if askSpeakFile != "" {
		cfg.TTSEnabled = true
	}

	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return nil, err
	}
	sess := rt.NewSession("")

	var res models.AnswerResult
	if audio != nil {
		res, err = sess.AskAudio(cmd.Context(), audio)
	} else {
		res, err = sess.Ask(cmd.Context(), question)
	}
	return &res, err
}

func askRemote(cmd *cobra.Command, question string, audio []byte) (*models.AnswerResult, error) {
	ctx := cmd.Context()
	c := client.New(askServerURL)

	id, err := c.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := c.DeleteSession(ctx, id); err != nil {
			logger.Debug("failed to delete session", "session_id", id, "error", err)
		}
	}()

	if audio != nil {
		return c.AskAudio(ctx, id, audio)
	}
	return c.Ask(ctx, id, question)
}
