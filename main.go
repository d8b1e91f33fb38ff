package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"tunescout/internal/cache"
	"tunescout/internal/catalog"
	"tunescout/internal/config"
	"tunescout/internal/library"
	"tunescout/internal/logging"
	"tunescout/internal/models"
	"tunescout/internal/profile"
	"tunescout/internal/recommend"
	"tunescout/internal/registry"
	"tunescout/internal/source"
	"tunescout/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log)
	log.Info().Msg("starting music recommendation pipeline")

	coord := store.NewShutdownCoordinator(log)
	coord.HandleSignals()

	if err := run(context.Background(), cfg, coord, log); err != nil {
		coord.FlushAll()
		log.Error().Err(err).Msg("pipeline failed")
		os.Exit(1)
	}

	coord.FlushAll()
	log.Info().Msg("pipeline completed successfully")
}

func run(ctx context.Context, cfg *config.Config, coord *store.ShutdownCoordinator, log zerolog.Logger) error {
	metaCache := cache.NewMetadataCache(cfg.Cache.MetadataFile, cfg.Cache.AutoSaveInterval, coord, log)
	profCache := cache.NewProfileCache(cfg.Cache.ProfileFile, cfg.Cache.RebuildThreshold, coord, log)

	reg, err := registry.Open(cfg.Cache.RegistryFile)
	if err != nil {
		// The registry only saves remote lookups; run without it.
		log.Warn().Err(err).Msg("catalog registry unavailable")
		reg = nil
	}
	defer reg.Close()

	cat, err := catalog.New(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.Market, log)
	if err != nil {
		return fmt.Errorf("init catalog client: %w", err)
	}

	browser := source.NewDirBrowser(cfg.Source.Root)
	files, err := browser.ListAudioFiles(ctx)
	if err != nil {
		return fmt.Errorf("scan library: %w", err)
	}
	log.Info().Int("files", len(files)).Str("root", cfg.Source.Root).Msg("library scanned")
	if len(files) == 0 {
		return fmt.Errorf("no audio files found under %s", cfg.Source.Root)
	}

	tracks := extractTracks(ctx, files, browser, metaCache, log)
	if err := metaCache.Save(false); err != nil {
		log.Error().Err(err).Msg("failed to save metadata cache")
	}
	if len(tracks) == 0 {
		return errors.New("could not extract metadata from any files")
	}

	idx := library.NewIndex()
	for _, t := range tracks {
		idx.Add(t)
	}

	prof, err := resolveProfile(ctx, tracks, idx, cat, reg, profCache, log)
	if err != nil {
		return err
	}

	metaStats := metaCache.Stats()
	log.Info().
		Int("hits", metaStats.Hits).Int("misses", metaStats.Misses).
		Float64("hit_rate", metaStats.HitRate).
		Msg("metadata cache stats")

	idxStats := idx.Stats()
	log.Info().
		Int("catalog_ids", idxStats.CatalogIDs).
		Int("unique_titles", idxStats.UniqueTitles).
		Msg("library index ready")

	engine := recommend.NewEngine(cat, engineConfig(cfg), nil, log)
	recs, filterStats, err := engine.Recommend(ctx, prof, idx)
	if err != nil {
		return fmt.Errorf("generate recommendations: %w", err)
	}
	if len(recs) == 0 {
		return errors.New("no recommendations generated")
	}

	for i, rec := range recs {
		if i >= 5 {
			break
		}
		log.Info().
			Int("rank", i+1).
			Str("artist", rec.Artist).Str("title", rec.Title).
			Float64("score", rec.Score).
			Msg("top recommendation")
	}

	stats := models.PipelineStats{
		TotalFiles:      len(files),
		TracksParsed:    len(tracks),
		GenresFound:     len(prof.GenreWeights),
		ArtistsFound:    len(prof.ArtistIDs),
		TracksOnCatalog: len(prof.TrackIDs),
		CacheHits:       metaStats.Hits,
		CacheMisses:     metaStats.Misses,
		CacheHitRate:    metaStats.HitRate,
	}
	if err := writeReport(cfg.Output.File, recs, stats, filterStats); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("file", cfg.Output.File).Msg("report written")
	return nil
}

// extractTracks walks the listing, serving from the metadata cache where
// possible and extracting (then caching) the rest. Per-file failures are
// skipped, never fatal.
func extractTracks(ctx context.Context, files []source.File, browser source.Browser, metaCache *cache.MetadataCache, log zerolog.Logger) []models.TrackRecord {
	currentIDs := make(map[string]struct{}, len(files))
	for _, f := range files {
		currentIDs[f.ID] = struct{}{}
	}
	// Prune before adding anything, so a stale entry never shadows a
	// same-named-but-different file.
	metaCache.RemoveDeleted(currentIDs)

	var tracks []models.TrackRecord
	cached, processed, failed := 0, 0, 0

	for i, f := range files {
		if ctx.Err() != nil {
			break
		}
		if i == 0 || (i+1)%25 == 0 {
			log.Info().
				Int("done", i+1).Int("total", len(files)).
				Int("cached", cached).Int("new", processed).Int("skipped", failed).
				Msg("processing audio files")
		}

		if rec, ok := metaCache.Get(f.ID, f.Size); ok {
			tracks = append(tracks, rec)
			cached++
			continue
		}

		header, err := browser.ReadHeader(ctx, f.ID, source.HeaderBytes)
		if err != nil {
			log.Debug().Err(err).Str("file", f.Name).Msg("header read failed")
			failed++
			continue
		}

		rec := source.Extract(header, f.Name, f.Path)
		tracks = append(tracks, rec)
		metaCache.Put(f.ID, f.Name, f.Path, f.Size, rec)
		processed++
	}

	log.Info().
		Int("cached", cached).Int("new", processed).Int("skipped", failed).
		Int("tracks", len(tracks)).
		Msg("processing complete")
	return tracks
}

// resolveProfile reuses the cached taste profile when the library has not
// changed enough to matter, and rebuilds it otherwise.
func resolveProfile(ctx context.Context, tracks []models.TrackRecord, idx *library.Index, cat *catalog.Client, reg *registry.Registry, profCache *cache.ProfileCache, log zerolog.Logger) (profile.Profile, error) {
	if cachedCount := profCache.CachedTrackCount(); cachedCount > 0 {
		log.Info().Int("current", len(tracks)).Int("cached", cachedCount).Msg("library size vs cached profile")
	}

	if profCache.IsValidForLibrary(tracks) {
		if p, ok := profCache.Cached(); ok {
			log.Info().
				Int("genres", len(p.GenreWeights)).
				Int("artists", len(p.ArtistIDs)).
				Int("tracks", len(p.TrackIDs)).
				Strs("top_genres", profCache.TopGenres(5)).
				Msg("using cached taste profile")

			for _, id := range p.TrackIDs {
				idx.AddCatalogID(id)
			}
			return profile.FromRecord(p.GenreWeights, p.ArtistIDs, p.TrackIDs, p.TopArtists), nil
		}
	}

	log.Info().Msg("building fresh taste profile")
	builder := profile.NewBuilder(cat, catalog.NewTagClient(), reg, log)
	prof, err := builder.Build(ctx, tracks, idx)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("build taste profile: %w", err)
	}

	if err := profCache.CacheProfile(tracks, prof.GenreWeights, prof.ArtistIDs, prof.TrackIDs, prof.TopArtists); err != nil {
		log.Error().Err(err).Msg("failed to cache taste profile")
	}
	return prof, nil
}

func engineConfig(cfg *config.Config) recommend.Config {
	return recommend.Config{
		TagSimilarityWeight:  cfg.Weights.TagSimilarity,
		ArtistAffinityWeight: cfg.Weights.ArtistAffinity,
		PopularityWeight:     cfg.Weights.Popularity,
		ExcludeRemixes:       cfg.Filters.ExcludeRemixes,
		ExcludeCovers:        cfg.Filters.ExcludeCovers,
		ExcludeLive:          cfg.Filters.ExcludeLive,
		ExcludeKaraoke:       cfg.Filters.ExcludeKaraoke,
		ExcludeInstrumentals: cfg.Filters.ExcludeInstrumentals,
		MinPopularity:        cfg.Filters.MinPopularity,
		MaxRecommendations:   cfg.MaxRecommendations,
	}
}

type report struct {
	GeneratedAt     time.Time               `json:"generated_at"`
	Stats           models.PipelineStats    `json:"stats"`
	Filtered        recommend.FilterStats   `json:"filtered"`
	Recommendations []models.Recommendation `json:"recommendations"`
}

func writeReport(path string, recs []models.Recommendation, stats models.PipelineStats, filtered recommend.FilterStats) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(report{
		GeneratedAt:     time.Now(),
		Stats:           stats,
		Filtered:        filtered,
		Recommendations: recs,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
