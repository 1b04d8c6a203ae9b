package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var (
	offerShop *string
	offerItem *string
)

func init() {
	offerShop = offerCmd.Flags().String("shop", "", "Shop id of the product.")
	offerItem = offerCmd.Flags().String("item", "", "Item id of the product.")
	_ = offerCmd.MarkFlagRequired("shop")
	_ = offerCmd.MarkFlagRequired("item")
	rootCmd.AddCommand(offerCmd)
}

var offerCmd = &cobra.Command{
	Use:   "offer --shop <id> --item <id>",
	Short: "Looks up the affiliate offer for one product.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context(), false, false)
		if err != nil {
			return err
		}

		offer, err := a.Affiliate.GetOffer(cmd.Context(), *offerShop, *offerItem)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(offer)
	},
}
