package hist_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"hist-go/internal/encryption"
	"hist-go/internal/hist"
	"hist-go/internal/sink"
	"hist-go/internal/testutil"
)

type serviceEnv struct {
	svc   *hist.HistService
	store hist.VersionStore
	ws    *testutil.MemoryWorkspace
	sink  *sink.MemorySink
	enc   *encryption.TestEncryptor
	log   *testutil.RecordingLogger
}

func newServiceEnv(t *testing.T, maxVersions int) *serviceEnv {
	t.Helper()
	env := &serviceEnv{
		store: testutil.NewTestStore(t),
		ws:    testutil.NewMemoryWorkspace(),
		sink:  sink.NewMemorySink("mem"),
		enc:   encryption.NewTestEncryptor(),
		log:   &testutil.RecordingLogger{},
	}
	env.svc = hist.NewHistService(env.store, env.ws, []hist.Sink{env.sink}, env.enc, env.log, maxVersions)
	return env
}

func TestHistService_Save(t *testing.T) {
	env := newServiceEnv(t, 0)
	env.ws.AddFile("src/a.go", "package a")

	v, err := env.svc.Save("src/a.go", "")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if v.Content != "package a" || v.Format != "go" || v.Path != "src/a.go" {
		t.Errorf("saved version = %+v", v)
	}
	if v.Kind != hist.KindSnapshot {
		t.Errorf("Kind = %q, want snapshot", v.Kind)
	}
	if env.log.Count("INFO version saved") != 1 {
		t.Errorf("log lines = %v", env.log.Lines)
	}

	if _, err := env.svc.Save("missing.txt", ""); err == nil {
		t.Error("Save() of missing file should fail")
	}
}

func TestHistService_SaveTree(t *testing.T) {
	env := newServiceEnv(t, 0)
	env.ws.AddFile("a.txt", "a")
	env.ws.AddFile("dir/b.txt", "b")
	env.ws.AddFile("dir/sub/c.txt", "c")

	tests := []struct {
		dir       string
		recursive bool
		want      int
	}{
		{".", false, 1},
		{"dir", false, 1},
		{"dir", true, 2},
		{"", true, 3},
	}
	for _, tt := range tests {
		n, err := env.svc.SaveTree(tt.dir, tt.recursive, "")
		if err != nil {
			t.Fatalf("SaveTree(%q, %v) error = %v", tt.dir, tt.recursive, err)
		}
		if n != tt.want {
			t.Errorf("SaveTree(%q, %v) = %d, want %d", tt.dir, tt.recursive, n, tt.want)
		}
	}

	versions, _ := env.store.List("dir/b.txt")
	if len(versions) != 3 {
		t.Errorf("dir/b.txt has %d versions, want 3", len(versions))
	}
}

func TestHistService_SaveTreeReportsPartialProgress(t *testing.T) {
	env := newServiceEnv(t, 0)
	env.ws.AddFile("a.txt", "a")
	env.ws.AddFile("b/./c.txt", "unencodable")
	env.ws.AddFile("c.txt", "c")

	n, err := env.svc.SaveTree("", true, "")
	if !errors.Is(err, hist.ErrInvalidPath) {
		t.Fatalf("SaveTree() error = %v, want ErrInvalidPath", err)
	}
	if n != 1 {
		t.Errorf("SaveTree() = %d, want 1 saved before the failure", n)
	}
	if versions, _ := env.store.List("a.txt"); len(versions) != 1 {
		t.Errorf("a.txt has %d versions, want 1", len(versions))
	}
}

func TestHistService_AutoPrune(t *testing.T) {
	env := newServiceEnv(t, 2)
	for _, c := range []string{"1", "2", "3", "4"} {
		env.ws.AddFile("a.txt", c)
		if _, err := env.svc.Save("a.txt", ""); err != nil {
			t.Fatal(err)
		}
	}

	versions, err := env.store.List("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[0].Content != "3" || versions[1].Content != "4" {
		t.Errorf("versions = %+v, want [3 4]", versions)
	}
	if env.log.Count("INFO history pruned") != 2 {
		t.Errorf("expected 2 prune log lines, got %v", env.log.Lines)
	}
}

func TestHistService_Import(t *testing.T) {
	env := newServiceEnv(t, 0)
	v, err := env.svc.Import("notes.md", strings.NewReader("imported"), "draft")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if v.Content != "imported" || v.Format != "md" || v.BranchName() != "draft" {
		t.Errorf("imported version = %+v", v)
	}
}

func TestHistService_ImportFromSink(t *testing.T) {
	env := newServiceEnv(t, 0)

	var ct bytes.Buffer
	if err := env.enc.Encrypt(strings.NewReader("secret"), &ct); err != nil {
		t.Fatal(err)
	}
	if err := env.sink.Put("enc.age", &ct, int64(ct.Len())); err != nil {
		t.Fatal(err)
	}
	if err := env.sink.Put("plain.txt", strings.NewReader("plain"), 5); err != nil {
		t.Fatal(err)
	}

	dec, err := env.enc.Unlock("")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("decrypts", func(t *testing.T) {
		v, err := env.svc.ImportFromSink("a.txt", "mem", "enc.age", dec, "")
		if err != nil {
			t.Fatalf("ImportFromSink() error = %v", err)
		}
		if v.Content != "secret" {
			t.Errorf("Content = %q, want secret", v.Content)
		}
	})

	t.Run("plain on default sink", func(t *testing.T) {
		v, err := env.svc.ImportFromSink("a.txt", "", "plain.txt", nil, "")
		if err != nil {
			t.Fatalf("ImportFromSink() error = %v", err)
		}
		if v.Content != "plain" {
			t.Errorf("Content = %q, want plain", v.Content)
		}
	})

	t.Run("unknown sink", func(t *testing.T) {
		_, err := env.svc.ImportFromSink("a.txt", "nope", "plain.txt", nil, "")
		if !errors.Is(err, hist.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := env.svc.ImportFromSink("a.txt", "mem", "gone", nil, "")
		if !errors.Is(err, hist.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestHistService_Restore(t *testing.T) {
	env := newServiceEnv(t, 0)
	env.ws.AddFile("a.txt", "old")
	if _, err := env.svc.Save("a.txt", ""); err != nil {
		t.Fatal(err)
	}
	env.ws.AddFile("a.txt", "new")

	if _, err := env.svc.Restore("a.txt", 0); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got, _ := env.ws.Content("a.txt"); got != "old" {
		t.Errorf("live content = %q, want old", got)
	}

	if _, err := env.svc.Restore("a.txt", 5); !errors.Is(err, hist.ErrNotFound) {
		t.Errorf("Restore(5) err = %v, want ErrNotFound", err)
	}
}

func TestHistService_MarkersRefused(t *testing.T) {
	env := newServiceEnv(t, 0)
	if _, err := env.store.TagBranch("a.txt", "exp"); err != nil {
		t.Fatal(err)
	}

	if _, err := env.svc.Restore("a.txt", 0); !errors.Is(err, hist.ErrNotSnapshot) {
		t.Errorf("Restore err = %v, want ErrNotSnapshot", err)
	}
	if _, err := env.svc.Compare("a.txt", 0); !errors.Is(err, hist.ErrNotSnapshot) {
		t.Errorf("Compare err = %v, want ErrNotSnapshot", err)
	}
	if _, err := env.svc.Export("a.txt", 0, "", "", false); !errors.Is(err, hist.ErrNotSnapshot) {
		t.Errorf("Export err = %v, want ErrNotSnapshot", err)
	}
	if _, ok := env.ws.Content("a.txt"); ok {
		t.Error("marker restore must not create the live file")
	}
}

func TestHistService_Compare(t *testing.T) {
	env := newServiceEnv(t, 0)
	if _, err := env.svc.Import("a.txt", strings.NewReader("stored"), ""); err != nil {
		t.Fatal(err)
	}

	c, err := env.svc.Compare("a.txt", 0)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !c.LiveMissing || c.Current != "" || c.Version.Content != "stored" {
		t.Errorf("comparison with missing live file = %+v", c)
	}

	env.ws.AddFile("a.txt", "live")
	c, err = env.svc.Compare("a.txt", 0)
	if err != nil {
		t.Fatal(err)
	}
	if c.LiveMissing || c.Current != "live" {
		t.Errorf("comparison = %+v", c)
	}
}

func TestHistService_Export(t *testing.T) {
	env := newServiceEnv(t, 0)
	if _, err := env.svc.Import("src/a_b.go", strings.NewReader("code"), ""); err != nil {
		t.Fatal(err)
	}

	t.Run("default object name", func(t *testing.T) {
		obj, err := env.svc.Export("src/a_b.go", 0, "", "", false)
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if want := "src_a%5Fb.go/20240115T103000Z-0.go"; obj != want {
			t.Errorf("object = %q, want %q", obj, want)
		}
		var buf bytes.Buffer
		if err := env.sink.Get(obj, &buf); err != nil || buf.String() != "code" {
			t.Errorf("sink content = %q, %v", buf.String(), err)
		}
	})

	t.Run("encrypted explicit object", func(t *testing.T) {
		obj, err := env.svc.Export("src/a_b.go", 0, "mem", "custom.bin", true)
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if obj != "custom.bin" {
			t.Errorf("object = %q", obj)
		}
		var buf bytes.Buffer
		if err := env.sink.Get(obj, &buf); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(buf.String(), "HISTTEST\n") {
			t.Errorf("exported data not encrypted: %q", buf.String())
		}
	})

	t.Run("export to writer", func(t *testing.T) {
		var buf bytes.Buffer
		if err := env.svc.ExportTo("src/a_b.go", 0, &buf, false); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "code" {
			t.Errorf("ExportTo = %q", buf.String())
		}
	})
}

func TestHistService_ExportWithoutKeys(t *testing.T) {
	st := testutil.NewTestStore(t)
	svc := hist.NewHistService(st, testutil.NewMemoryWorkspace(), []hist.Sink{sink.NewMemorySink("m")}, nil, hist.NewNopLogger(), 0)
	if _, err := svc.Import("a.txt", strings.NewReader("x"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Export("a.txt", 0, "", "", true); err == nil {
		t.Error("encrypted export without an encryptor should fail")
	}
}

func TestHistService_NoSinks(t *testing.T) {
	st := testutil.NewTestStore(t)
	svc := hist.NewHistService(st, testutil.NewMemoryWorkspace(), nil, nil, hist.NewNopLogger(), 0)
	if _, err := svc.Import("a.txt", strings.NewReader("x"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Export("a.txt", 0, "", "", false); err == nil {
		t.Error("export without sinks should fail")
	}
}

func TestObjectName(t *testing.T) {
	v := &hist.Version{Timestamp: testutil.FixedClock().Now(), Format: "txt"}
	tests := []struct {
		name      string
		path      string
		index     int
		format    string
		encrypted bool
		want      string
	}{
		{"plain", "a.txt", 0, "txt", false, "a.txt/20240115T103000Z-0.txt"},
		{"encrypted", "dir/a.txt", 3, "txt", true, "dir_a.txt/20240115T103000Z-3.txt.age"},
		{"no format", "Makefile", 1, "", false, "Makefile/20240115T103000Z-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vv := *v
			vv.Format = tt.format
			got, err := hist.ObjectName(tt.path, tt.index, &vv, tt.encrypted)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ObjectName() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := hist.ObjectName("../x", 0, v, false); !errors.Is(err, hist.ErrInvalidPath) {
		t.Errorf("invalid path err = %v, want ErrInvalidPath", err)
	}
}

func TestHistService_PerformAction(t *testing.T) {
	setup := func(t *testing.T) *serviceEnv {
		env := newServiceEnv(t, 0)
		env.ws.AddFile("a.txt", "v0")
		if _, err := env.svc.Save("a.txt", ""); err != nil {
			t.Fatal(err)
		}
		env.ws.AddFile("a.txt", "v1")
		if _, err := env.svc.Save("a.txt", ""); err != nil {
			t.Fatal(err)
		}
		return env
	}

	tests := []struct {
		kind  hist.ActionKind
		check func(t *testing.T, env *serviceEnv, res *hist.ActionResult)
	}{
		{hist.ActionPreview, func(t *testing.T, env *serviceEnv, res *hist.ActionResult) {
			if res.Version == nil || res.Version.Content != "v0" {
				t.Errorf("preview version = %+v", res.Version)
			}
		}},
		{hist.ActionApply, func(t *testing.T, env *serviceEnv, res *hist.ActionResult) {
			if got, _ := env.ws.Content("a.txt"); got != "v0" {
				t.Errorf("live content = %q, want v0", got)
			}
		}},
		{hist.ActionCompare, func(t *testing.T, env *serviceEnv, res *hist.ActionResult) {
			if res.Comparison == nil || res.Comparison.Current != "v1" || res.Version.Content != "v0" {
				t.Errorf("comparison = %+v", res.Comparison)
			}
		}},
		{hist.ActionExport, func(t *testing.T, env *serviceEnv, res *hist.ActionResult) {
			if res.Object == "" || len(env.sink.Objects()) != 1 {
				t.Errorf("export object = %q, sink objects = %v", res.Object, env.sink.Objects())
			}
		}},
		{hist.ActionDelete, func(t *testing.T, env *serviceEnv, res *hist.ActionResult) {
			versions, _ := env.store.List("a.txt")
			if len(versions) != 1 || versions[0].Content != "v1" {
				t.Errorf("versions after delete = %+v", versions)
			}
		}},
		{hist.ActionToggleFavorite, func(t *testing.T, env *serviceEnv, res *hist.ActionResult) {
			if !res.Favorite {
				t.Error("Favorite = false, want true")
			}
			v, _ := env.store.Get("a.txt", 0)
			if !v.IsFavorite {
				t.Error("stored version not marked favorite")
			}
		}},
	}

	if len(tests) != len(hist.ActionKinds()) {
		t.Fatalf("test covers %d actions, enum has %d", len(tests), len(hist.ActionKinds()))
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			env := setup(t)
			res, err := env.svc.PerformAction(tt.kind, "a.txt", 0)
			if err != nil {
				t.Fatalf("PerformAction(%s) error = %v", tt.kind, err)
			}
			if res.Kind != tt.kind {
				t.Errorf("result kind = %v, want %v", res.Kind, tt.kind)
			}
			tt.check(t, env, res)
		})
	}

	t.Run("bad index", func(t *testing.T) {
		env := setup(t)
		for _, k := range hist.ActionKinds() {
			if _, err := env.svc.PerformAction(k, "a.txt", 9); !errors.Is(err, hist.ErrNotFound) {
				t.Errorf("%s on bad index err = %v, want ErrNotFound", k, err)
			}
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		env := setup(t)
		if _, err := env.svc.PerformAction(hist.ActionKind(99), "a.txt", 0); !errors.Is(err, hist.ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})
}
