package localize

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"imgsync/internal/assets"
	"imgsync/internal/ledger"
	"imgsync/internal/logging"
	"imgsync/internal/services"
	"imgsync/internal/services/download"
)

// resolveAll settles every reference and returns outcomes in reference order.
// References that name the same asset run sequentially in one task so the
// second one observes the file the first one wrote.
func (d *Driver) resolveAll(ctx context.Context, rel, relDir string, refs []reference) []Outcome {
	outcomes := make([]Outcome, len(refs))
	groups := groupByAsset(refs, relDir)

	runGroup := func(members []int) {
		for _, idx := range members {
			if ctx.Err() != nil {
				return
			}
			outcomes[idx] = d.processReference(ctx, rel, relDir, refs[idx])
		}
	}

	if d.workers <= 1 || len(groups) == 1 {
		for _, members := range groups {
			runGroup(members)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(d.workers)
		for _, members := range groups {
			g.Go(func() error {
				runGroup(members)
				return nil
			})
		}
		_ = g.Wait()
	}

	settled := outcomes[:0]
	for _, o := range outcomes {
		if o.Status != "" {
			settled = append(settled, o)
		}
	}
	return settled
}

// groupByAsset partitions reference indexes by the asset they resolve to,
// preserving first-appearance order of groups and members.
func groupByAsset(refs []reference, relDir string) [][]int {
	saveDir := assets.SaveDir(relDir)
	order := make([]string, 0, len(refs))
	members := make(map[string][]int, len(refs))
	for i, ref := range refs {
		key := "url:" + ref.url
		if name, err := assets.Name(ref.url); err == nil {
			key = saveDir + "/" + name
		}
		if _, ok := members[key]; !ok {
			order = append(order, key)
		}
		members[key] = append(members[key], i)
	}
	groups := make([][]int, 0, len(order))
	for _, key := range order {
		groups = append(groups, members[key])
	}
	return groups
}

func (d *Driver) processReference(ctx context.Context, rel, relDir string, ref reference) Outcome {
	out := Outcome{Document: rel, Target: ref.target, URL: ref.url}
	logger := logging.WithContext(ctx, d.logger).With(logging.Args(logging.URL(ref.url))...)
	defer func() {
		d.events.emit(Event{Kind: EventReference, Document: rel, Outcome: &out})
	}()

	if ref.err != nil {
		out.Status = ledger.StatusFailed
		out.Err = ref.err
		logging.WarnWithContext(logger, "inline image cannot be rewritten", "reference_unmatched",
			logging.Error(ref.err),
			logging.String(logging.FieldErrorHint, "write the src attribute without character references"),
			logging.String(logging.FieldImpact, "remote link left in place"),
		)
		return out
	}

	if cached, ok := d.failed.Get(ref.url); ok {
		out.Status = ledger.StatusFailed
		out.Err = cached
		logger.Debug("skipping url that already failed this run", logging.Error(cached))
		return out
	}

	rec, err := d.namer.Resolve(ref.url, relDir)
	if err != nil {
		out.Status = ledger.StatusFailed
		out.Err = err
		logging.WarnWithContext(logger, "image reference unusable", "reference_unusable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the url has no usable file name"),
			logging.String(logging.FieldImpact, "remote link left in place"),
		)
		return out
	}
	out.LocalPath = rec.LocalPath
	out.RewritePath = rec.RewritePath

	if rec.Present {
		out.Status = ledger.StatusSkipped
		if info, statErr := os.Stat(rec.LocalPath); statErr == nil {
			out.BytesIn = info.Size()
			out.BytesOut = info.Size()
		}
		logger.Debug("asset already present", logging.String("path", rec.LocalPath))
		return out
	}

	fetchCtx := services.WithStage(ctx, "download")
	written, err := d.fetcher.Fetch(fetchCtx, ref.url, rec.LocalPath, func(p download.Progress) {
		d.events.emit(Event{Kind: EventProgress, Document: rel, Progress: p})
	})
	if err != nil {
		out.Status = ledger.StatusFailed
		out.Err = err
		if ctx.Err() == nil {
			d.failed.Add(ref.url, err)
			logging.WarnWithContext(logger.With(logging.Args(logging.String(logging.FieldStage, "download"))...), "image download failed", "download_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the url is reachable"),
				logging.String(logging.FieldImpact, "remote link left in place; retried next run"),
			)
		}
		return out
	}
	out.Status = ledger.StatusFetched
	out.BytesIn = written
	out.BytesOut = written
	logger.Info("image fetched", logging.String("path", rec.LocalPath), logging.Int64("bytes", written))

	if d.transcoder == nil {
		return out
	}
	transcodeCtx := services.WithStage(ctx, "transcode")
	res, err := d.transcoder.Transcode(transcodeCtx, rec.LocalPath, rec.LocalPath)
	switch {
	case err != nil:
		out.Warning = err
		logging.WarnWithContext(logger.With(logging.Args(logging.String(logging.FieldStage, "transcode"))...), "transcode failed; keeping original", "transcode_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run imgsync codec status"),
			logging.String(logging.FieldImpact, "asset kept untranscoded"),
		)
	case res.Accepted:
		out.Status = ledger.StatusTranscoded
		out.BytesIn = res.InputBytes
		out.BytesOut = res.OutputBytes
	default:
		logger.Debug("transcode not smaller; original kept",
			logging.Int64("input_bytes", res.InputBytes),
			logging.Int64("output_bytes", res.OutputBytes),
		)
	}
	return out
}
