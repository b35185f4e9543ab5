package cli

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abelzeko/waterwatch/internal/config"
	"github.com/abelzeko/waterwatch/internal/repository"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage alert subscribers",
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a subscriber",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var thresholdCmd = &cobra.Command{
	Use:   "threshold",
	Short: "Manage alert thresholds",
}

var thresholdAddCmd = &cobra.Command{
	Use:   "add <user> <station> <cm>",
	Short: "Add a threshold for a station",
	Args:  cobra.ExactArgs(3),
	RunE:  runThresholdAdd,
}

var thresholdListCmd = &cobra.Command{
	Use:   "list <user>",
	Short: "List thresholds of a subscriber",
	Args:  cobra.ExactArgs(1),
	RunE:  runThresholdList,
}

var recipientCmd = &cobra.Command{
	Use:   "recipient",
	Short: "Manage alert email addresses",
}

var recipientAddCmd = &cobra.Command{
	Use:   "add <user> <email>",
	Short: "Add an alert address",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecipientAdd,
}

var recipientRemoveCmd = &cobra.Command{
	Use:   "remove <user> <email>",
	Short: "Remove an alert address",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecipientRemove,
}

var recipientListCmd = &cobra.Command{
	Use:   "list <user>",
	Short: "List alert addresses of a subscriber",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecipientList,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)

	rootCmd.AddCommand(thresholdCmd)
	thresholdCmd.AddCommand(thresholdAddCmd)
	thresholdCmd.AddCommand(thresholdListCmd)

	rootCmd.AddCommand(recipientCmd)
	recipientCmd.AddCommand(recipientAddCmd)
	recipientCmd.AddCommand(recipientRemoveCmd)
	recipientCmd.AddCommand(recipientListCmd)
}

// openStore loads config and opens the database for the admin commands.
func openStore() (*config.Config, *repository.SQLiteRepository, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	repo, err := initStorage(cfg, newLogger(cfg))
	if err != nil {
		return nil, nil, err
	}
	return cfg, repo, nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	_, repo, err := openStore()
	if err != nil {
		return err
	}
	defer repo.Close()

	id, err := repo.AddUser(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	fmt.Printf("User %s created (id %d)\n", args[0], id)
	return nil
}

func runThresholdAdd(cmd *cobra.Command, args []string) error {
	cfg, repo, err := openStore()
	if err != nil {
		return err
	}
	defer repo.Close()

	cm, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("threshold %q is not a whole number of centimetres", args[2])
	}

	userID, err := repo.GetUserByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	station := args[1]
	if !slices.Contains(cfg.Stations.Order, station) {
		fmt.Fprintf(os.Stderr, "warning: station %q is not in stations.order and will never alert\n", station)
	}

	if err := repo.AddThreshold(cmd.Context(), userID, station, cm); err != nil {
		return fmt.Errorf("add threshold: %w", err)
	}
	fmt.Printf("Threshold set: %s alerts at %s above %d cm\n", args[0], station, cm)
	return nil
}

func runThresholdList(cmd *cobra.Command, args []string) error {
	_, repo, err := openStore()
	if err != nil {
		return err
	}
	defer repo.Close()

	userID, err := repo.GetUserByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	thresholds, err := repo.GetUserThresholds(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("list thresholds: %w", err)
	}
	if len(thresholds) == 0 {
		fmt.Println("No thresholds configured. Use 'waterwatch threshold add' to create one.")
		return nil
	}

	stations := make([]string, 0, len(thresholds))
	for station := range thresholds {
		stations = append(stations, station)
	}
	sort.Strings(stations)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "STATION\tTHRESHOLDS (cm)\tEFFECTIVE\n")
	for _, station := range stations {
		rows := thresholds[station]
		fmt.Fprintf(w, "%s\t%v\t%d\n", station, rows, slices.Max(rows))
	}
	w.Flush()

	return nil
}

func runRecipientAdd(cmd *cobra.Command, args []string) error {
	_, repo, err := openStore()
	if err != nil {
		return err
	}
	defer repo.Close()

	userID, err := repo.GetUserByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := repo.AddRecipient(cmd.Context(), userID, args[1]); err != nil {
		return fmt.Errorf("add recipient: %w", err)
	}
	fmt.Printf("Recipient %s added for %s\n", args[1], args[0])
	return nil
}

func runRecipientRemove(cmd *cobra.Command, args []string) error {
	_, repo, err := openStore()
	if err != nil {
		return err
	}
	defer repo.Close()

	userID, err := repo.GetUserByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if err := repo.RemoveRecipient(cmd.Context(), userID, args[1]); err != nil {
		return fmt.Errorf("remove recipient: %w", err)
	}
	fmt.Printf("Recipient %s removed for %s\n", args[1], args[0])
	return nil
}

func runRecipientList(cmd *cobra.Command, args []string) error {
	_, repo, err := openStore()
	if err != nil {
		return err
	}
	defer repo.Close()

	userID, err := repo.GetUserByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	emails, err := repo.GetRecipients(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("list recipients: %w", err)
	}
	if len(emails) == 0 {
		fmt.Println("No recipients configured. Use 'waterwatch recipient add' to add one.")
		return nil
	}
	for _, e := range emails {
		fmt.Println(e)
	}
	return nil
}
