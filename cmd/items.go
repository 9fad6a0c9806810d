package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List the rooms and media devices known to the director",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doItems(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("director.host")
	},
}

func init() {
	itemsCmd.Flags().Bool("json", false, "print items as JSON")
	itemsCmd.Flags().Bool("all", false, "list every item, not just rooms and media devices")

	errPanic(viper.GetViper().BindPFlag("items.json", itemsCmd.Flags().Lookup("json")))
	errPanic(viper.GetViper().BindPFlag("items.all", itemsCmd.Flags().Lookup("all")))

	rootCmd.AddCommand(itemsCmd)
}

type itemRow struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Proxy    string `json:"proxy,omitempty"`
	ParentID int    `json:"parent_id,omitempty"`
	RoomName string `json:"room_name,omitempty"`
}

func itemRows(items []c4api.Item, all bool, proxies []string) []itemRow {
	wanted := map[string]bool{}
	for _, p := range proxies {
		wanted[p] = true
	}

	rows := []itemRow{}
	for _, item := range items {
		id, ok := item.ItemID()
		if !ok {
			continue
		}
		if !all && item.TypeName != "room" && !wanted[item.Proxy] {
			continue
		}

		parent, _ := item.Parent()
		rows = append(rows, itemRow{
			ID:       id,
			Name:     item.ItemName(),
			Type:     item.TypeName,
			Proxy:    item.Proxy,
			ParentID: parent,
			RoomName: item.RoomName,
		})
	}

	return rows
}

func doItems() error {
	ctx := context.Background()

	session, err := newSession(ctx)
	if err != nil {
		return err
	}

	items, err := newDirectorHelper(session).AllItems(ctx)
	if err != nil {
		return err
	}

	rows := itemRows(items, viper.GetBool("items.all"), viper.GetStringSlice("media.proxies"))

	if viper.GetBool("items.json") {
		b, err := json.MarshalIndent(rows, "", "    ")
		if err != nil {
			return err
		}

		fmt.Println(string(b))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tPROXY\tROOM")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Type, r.Proxy, r.RoomName)
	}

	return w.Flush()
}
