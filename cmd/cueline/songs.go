package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/cueline/internal/config"
	"github.com/satindergrewal/cueline/internal/song"
)

var songsDataDir string

var songsCmd = &cobra.Command{
	Use:   "songs",
	Short: "Manage stored songs",
}

var songsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored songs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSongs(func(cfg config.Config, store *song.Store) error {
			songs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tARTIST\tSPEED\tTHRESHOLD")
			for _, s := range songs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f px/s\t%.1f dB\n", s.ID, s.Title, s.Artist, s.SpeedPxPerSecond, s.ThresholdDB)
			}
			return tw.Flush()
		})
	},
}

var songAddFlags struct {
	artist    string
	lyrics    string
	speed     float64
	fontSize  float64
	threshold float64
}

var songsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a song, reading lyrics from --lyrics or stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var lyrics []byte
		var err error
		if songAddFlags.lyrics != "" {
			lyrics, err = os.ReadFile(songAddFlags.lyrics)
		} else {
			lyrics, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read lyrics: %w", err)
		}

		return withSongs(func(cfg config.Config, store *song.Store) error {
			s := song.Song{
				Title:            args[0],
				Artist:           songAddFlags.artist,
				Lyrics:           string(lyrics),
				SpeedPxPerSecond: songAddFlags.speed,
				FontSizePx:       songAddFlags.fontSize,
				ThresholdDB:      songAddFlags.threshold,
			}
			s.Defaults(song.Song{
				SpeedPxPerSecond: cfg.SpeedPxPerSecond,
				FontSizePx:       cfg.FontSizePx,
				ThresholdDB:      cfg.ThresholdDB,
			})
			created, err := store.Create(cmd.Context(), s)
			if err != nil {
				return err
			}
			fmt.Println(created.ID)
			return nil
		})
	},
}

var songsRmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Delete songs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSongs(func(_ config.Config, store *song.Store) error {
			for _, id := range args {
				if err := store.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
			}
			return nil
		})
	},
}

func init() {
	songsCmd.PersistentFlags().StringVar(&songsDataDir, "data-dir", "", "song database directory (default $CUELINE_DATA_DIR)")

	songsAddCmd.Flags().StringVar(&songAddFlags.artist, "artist", "", "artist name")
	songsAddCmd.Flags().StringVar(&songAddFlags.lyrics, "lyrics", "", "lyrics file (default stdin)")
	songsAddCmd.Flags().Float64Var(&songAddFlags.speed, "speed", 0, "scroll speed in px/s (default $CUELINE_SPEED)")
	songsAddCmd.Flags().Float64Var(&songAddFlags.fontSize, "font-size", 0, "font size in px (default $CUELINE_FONT_SIZE)")
	songsAddCmd.Flags().Float64Var(&songAddFlags.threshold, "threshold", 0, "trigger threshold in dBFS (default $CUELINE_THRESHOLD_DB)")

	songsCmd.AddCommand(songsListCmd, songsAddCmd, songsRmCmd)
}

// withSongs opens the song store for the duration of fn.
func withSongs(fn func(config.Config, *song.Store) error) error {
	cfg := loadConfig()
	if songsDataDir != "" {
		cfg.DataDir = songsDataDir
	}
	store, err := song.Open(song.Options{Dir: cfg.DataDir, Logger: newLogger(cfg)})
	if err != nil {
		return fmt.Errorf("open songs: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}
