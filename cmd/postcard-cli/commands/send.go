package commands

import (
	"fmt"
	"log/slog"

	"postcard-creator/lib/platforms/postcreator/core"
	"postcard-creator/lib/postcard"
	"postcard-creator/lib/serviceutil"

	"dario.cat/mergo"
	"github.com/spf13/cobra"
)

var (
	sendPicture *string
	sendMessage *string
)

func init() {
	sendPicture = sendCmd.Flags().String("picture", "", "The picture to print on the front, overrides the config.")
	sendMessage = sendCmd.Flags().String("message", "", "The message to print on the back, overrides the config.")
	rootCmd.AddCommand(sendCmd)
}

// postcardWithFlags builds the postcard from the config, non-empty flags
// take precedence.
func postcardWithFlags(cfg Config, picture, message string) (postcard.Postcard, error) {
	card := cfg.Postcard()
	err := mergo.Merge(&card, postcard.Postcard{
		ImageLocation: picture,
		Message:       message,
	}, mergo.WithOverride)
	return card, err
}

var sendCmd = &cobra.Command{
	Use:   "send [--picture <path>] [--message <text>]",
	Short: "Order a free postcard to the configured recipient.",
	Run: func(cmd *cobra.Command, args []string) {
		card, err := postcardWithFlags(state.cfg, *sendPicture, *sendMessage)
		if err != nil {
			serviceutil.Fatal("failed to apply flags", err)
		}
		err = card.Validate()
		if err != nil {
			serviceutil.Fatal("postcard is incomplete", err)
		}

		var mailingId string
		err = withSession(cmd.Context(), func(client *core.Client) (err error) {
			mailingId, err = client.SubmitFreePostcard(cmd.Context(), card)
			return err
		})
		if err != nil {
			if mailingId != "" {
				slog.Warn("a draft mailing was left behind", "mailing_id", mailingId)
			}
			serviceutil.Fatal("failed to send postcard", err)
		}

		slog.Info("postcard ordered", "mailing_id", mailingId)
		fmt.Println(mailingId)
	},
}
