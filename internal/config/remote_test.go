package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestParseSnapshot_TabAndCommaSeparators(t *testing.T) {
	doc := "isActive\ttrue\n" +
		"mode,topic\n" +
		"categories\ttech|sports\n" +
		"intervalMinutes,30\n" +
		"maxDailyPosts\t12\n" +
		"customTopic,space exploration, past and future\n" +
		"# a comment line\n" +
		"unknownKey\tignored\n"

	snap := ParseSnapshot(doc)
	if !snap.Active || snap.Mode != ModeTopic {
		t.Fatalf("unexpected active/mode: %+v", snap)
	}
	if !reflect.DeepEqual(snap.Categories, []string{"tech", "sports"}) {
		t.Fatalf("unexpected categories: %v", snap.Categories)
	}
	if snap.IntervalMinutes != 30 || snap.MaxDailyPosts != 12 {
		t.Fatalf("unexpected interval/cap: %+v", snap)
	}
	// Only the first comma splits key from value.
	if snap.CustomTopic != "space exploration, past and future" {
		t.Fatalf("unexpected topic: %q", snap.CustomTopic)
	}
}

func TestParseSnapshot_MissingKeysKeepDefaults(t *testing.T) {
	snap := ParseSnapshot("mode\tnews\n")
	def := DefaultSnapshot()
	if snap.IntervalMinutes != def.IntervalMinutes || snap.MaxDailyPosts != def.MaxDailyPosts {
		t.Fatalf("missing keys must keep defaults: %+v", snap)
	}
	if !reflect.DeepEqual(snap.Hashtags, DefaultHashtags) {
		t.Fatalf("expected default hashtags, got %v", snap.Hashtags)
	}
}

func TestParseSnapshot_BadValuesIgnored(t *testing.T) {
	snap := ParseSnapshot("intervalMinutes\tnope\nmaxDailyPosts\t-3\nmode\tbanana\n")
	def := DefaultSnapshot()
	if snap.IntervalMinutes != def.IntervalMinutes || snap.MaxDailyPosts != def.MaxDailyPosts || snap.Mode != def.Mode {
		t.Fatalf("bad values must be ignored: %+v", snap)
	}
}

func TestRemoteFetcher_FallsBackToLastKnownGood(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("intervalMinutes\t15\n"))
	}))
	defer srv.Close()

	f := NewRemoteFetcher(srv.URL, srv.Client())
	if snap := f.Fetch(context.Background()); snap.IntervalMinutes != 15 {
		t.Fatalf("expected remote interval, got %d", snap.IntervalMinutes)
	}

	fail = true
	if snap := f.Fetch(context.Background()); snap.IntervalMinutes != 15 {
		t.Fatalf("expected last known good after failure, got %d", snap.IntervalMinutes)
	}
}

func TestRemoteFetcher_DefaultsWhenNeverFetched(t *testing.T) {
	f := NewRemoteFetcher("", nil)
	snap := f.Fetch(context.Background())
	if !reflect.DeepEqual(snap, DefaultSnapshot()) {
		t.Fatalf("expected hardcoded defaults, got %+v", snap)
	}
}
