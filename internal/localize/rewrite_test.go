package localize

import (
	"testing"

	"imgsync/internal/ledger"
	"imgsync/internal/services/download"
)

func TestRewritePrefersLongerTargets(t *testing.T) {
	text := "![a](https://x/b.png) ![b](https://x/b.png?v=2)"
	outcomes := []Outcome{
		{Target: "https://x/b.png", RewritePath: "/images/b.png", Status: ledger.StatusFetched},
		{Target: "https://x/b.png?v=2", RewritePath: "/images/b.png", Status: ledger.StatusSkipped},
	}
	got := rewrite(text, outcomes)
	want := "![a](/images/b.png) ![b](/images/b.png)"
	if got != want {
		t.Fatalf("rewrite = %q, want %q", got, want)
	}
}

func TestRewriteSkipsFailedOutcomes(t *testing.T) {
	text := "![a](https://x/a.png)"
	got := rewrite(text, []Outcome{{Target: "https://x/a.png", RewritePath: "/images/a.png", Status: ledger.StatusFailed}})
	if got != text {
		t.Fatalf("failed outcome rewritten: %q", got)
	}
}

func TestGroupByAssetMergesSpellings(t *testing.T) {
	refs := []reference{
		{target: "//x/a.png", url: "https://x/a.png"},
		{target: "https://y/b.png", url: "https://y/b.png"},
		{target: "https://x/a.png", url: "https://x/a.png"},
		{target: "https://z/", url: "https://z/"},
	}
	groups := groupByAsset(refs, "docs")
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %v", groups)
	}
	if len(groups[0]) != 2 || groups[0][0] != 0 || groups[0][1] != 2 {
		t.Fatalf("unexpected first group: %v", groups[0])
	}
}

func TestEventSinkDropsProgressRegressions(t *testing.T) {
	var got []float64
	sink := newEventSink(ReporterFunc(func(e Event) { got = append(got, e.Progress.Percent) }))
	for _, p := range []float64{10, 5, 10, 40} {
		sink.emit(Event{Kind: EventProgress, Progress: progressAt("u", p)})
	}
	if len(got) != 2 || got[0] != 10 || got[1] != 40 {
		t.Fatalf("unexpected progress: %v", got)
	}
}

func progressAt(url string, percent float64) download.Progress {
	return download.Progress{URL: url, Percent: percent}
}
