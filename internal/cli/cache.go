package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrichain/cropadvisor/internal/config"
	"github.com/agrichain/cropadvisor/internal/sources/cache"
)

const errSoilCacheDisabled constError = "soil cache is disabled: sources.cache_dir is empty"

// cacheStatusOutput is the JSON shape of cache status.
type cacheStatusOutput struct {
	Directory  string `json:"directory"`
	TTL        string `json:"ttl"`
	Entries    int    `json:"entries"`
	Expired    int    `json:"expired"`
	Unreadable int    `json:"unreadable"`
	OldestAge  string `json:"oldest_age,omitempty"`
}

// newCacheCmd creates the cache command group for the soil profile cache.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the soil profile cache",
		Long: `Soil profiles fetched from SoilGrids are cached on disk under
sources.cache_dir (default $CROPADVISOR_HOME/cache) for sources.cache_ttl_hours.`,
	}
	cmd.AddCommand(NewCacheStatusCmd(), NewCachePruneCmd(), NewCacheClearCmd())
	return cmd
}

// NewCacheStatusCmd creates the cache status command.
func NewCacheStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cache location, TTL and entry counts",
		Example: `  cropadvisor cache status
  cropadvisor cache status -o json`,
		RunE: runCacheStatus,
	}
}

func runCacheStatus(cmd *cobra.Command, _ []string) error {
	store, err := openSoilCache(config.GetGlobalConfig().Sources)
	if err != nil {
		return fmt.Errorf("opening soil cache: %w", err)
	}
	st, err := store.Stats()
	if err != nil {
		return err
	}

	out := cacheStatusOutput{
		Directory:  store.Directory(),
		TTL:        cache.FormatDuration(store.TTL()),
		Entries:    st.Entries,
		Expired:    st.Expired,
		Unreadable: st.Unreadable,
	}
	if st.Entries > st.Unreadable {
		out.OldestAge = cache.FormatDuration(st.Oldest)
	}

	if outputFormat(cmd) == outputJSON {
		return writeJSON(cmd.OutOrStdout(), out)
	}
	r := report{
		title: "Soil cache",
		facts: [][2]string{
			{"Directory", out.Directory},
			{"TTL", out.TTL},
			{"Entries", fmt.Sprintf("%d (%d expired, %d unreadable)", out.Entries, out.Expired, out.Unreadable)},
		},
	}
	if out.OldestAge != "" {
		r.facts = append(r.facts, [2]string{"Oldest entry", out.OldestAge})
	}
	return r.render(cmd.OutOrStdout())
}

// NewCachePruneCmd creates the cache prune command.
func NewCachePruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "prune",
		Short:   "Remove expired and unreadable cache entries",
		Example: `  cropadvisor cache prune`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openSoilCache(config.GetGlobalConfig().Sources)
			if err != nil {
				return fmt.Errorf("opening soil cache: %w", err)
			}
			before, err := store.Count()
			if err != nil {
				return err
			}
			if err = store.CleanupExpired(); err != nil {
				return fmt.Errorf("pruning soil cache: %w", err)
			}
			after, err := store.Count()
			if err != nil {
				return err
			}

			logger.Info().Ctx(cmd.Context()).Int("removed", before-after).Msg("soil cache pruned")
			cmd.Printf("Removed %d expired entries, %d remain in %s\n", before-after, after, store.Directory())
			return nil
		},
	}
}

// NewCacheClearCmd creates the cache clear command.
func NewCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "clear",
		Short:   "Remove every cache entry",
		Example: `  cropadvisor cache clear`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openSoilCache(config.GetGlobalConfig().Sources)
			if err != nil {
				return fmt.Errorf("opening soil cache: %w", err)
			}
			if err = store.Clear(); err != nil {
				return fmt.Errorf("clearing soil cache: %w", err)
			}
			cmd.Printf("Soil cache cleared: %s\n", store.Directory())
			return nil
		},
	}
}
