package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/moodmix/internal/app"
	"github.com/ewilliams-labs/moodmix/internal/core/services"
)

func newMoodCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "mood <description>",
		Short: "Recommend tracks for a mood description",
		Example: `  moodctl mood "rainy sunday morning with coffee"
  moodctl mood --limit 20 melancholic synthwave`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.MoodRequest{Mood: strings.Join(args, " "), Limit: limit}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Orchestrator.RecommendByMood(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of tracks (default from config)")
	return cmd
}

func newSimilarCmd() *cobra.Command {
	var req services.SongRequest

	cmd := &cobra.Command{
		Use:   "similar",
		Short: "Discover tracks similar to a seed song",
		Example: `  moodctl similar --title "Midnight City" --artist M83
  moodctl similar --track-id 1eyzqe2QqGZUmfcPZtrIyt
  moodctl similar --query "bohemian rhapsody"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.TrackID == "" && req.Title == "" && req.Query == "" {
				return errors.New("one of --query, --title or --track-id is required")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Orchestrator.DiscoverBySong(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVarP(&req.Query, "query", "q", "", "Free-text search for the seed")
	cmd.Flags().StringVar(&req.Title, "title", "", "Seed title")
	cmd.Flags().StringVar(&req.Artist, "artist", "", "Seed artist, used with --title for a scored match")
	cmd.Flags().StringVar(&req.TrackID, "track-id", "", "Seed Spotify track id")
	cmd.Flags().IntVarP(&req.Limit, "limit", "n", 0, "Number of tracks (default from config)")
	return cmd
}
