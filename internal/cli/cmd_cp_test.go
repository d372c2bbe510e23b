package cli_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/streamfile/internal/cli"
)

func Test_Cp_Copies_File_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	content := strings.Repeat("line\n", 1000)
	c.WriteFile("src.txt", content)

	stdout := c.MustRun("--chunk-size", "100", "cp", "src.txt", "dst.txt")

	cli.AssertContains(t, stdout, "src.txt -> dst.txt (5000 bytes)")

	if got := c.ReadFile("dst.txt"); got != content {
		t.Errorf("dst content differs: got %d bytes, want %d", len(got), len(content))
	}
}

func Test_Cp_Appends_When_Mode_Is_Append(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("src.txt", "tail")
	c.WriteFile("dst.txt", "head-")

	c.MustRun("cp", "--mode", "append", "src.txt", "dst.txt")

	if got, want := c.ReadFile("dst.txt"), "head-tail"; got != want {
		t.Errorf("dst=%q, want=%q", got, want)
	}
}

func Test_Cp_Overwrites_In_Place_When_Mode_Is_Readwrite(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("src.txt", "AB")
	c.WriteFile("dst.txt", "abcdef")

	c.MustRun("cp", "--mode=rw", "src.txt", "dst.txt")

	if got, want := c.ReadFile("dst.txt"), "ABcdef"; got != want {
		t.Errorf("dst=%q, want=%q", got, want)
	}
}

func Test_Cp_Copies_With_Every_Buffering_When_Buffering_Flag_Given(t *testing.T) {
	t.Parallel()

	for _, buf := range []string{"none", "line", "block", "block:3"} {
		t.Run(buf, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			c.WriteFile("src.txt", "one\ntwo\nthree")

			c.MustRun("--chunk-size", "2", "cp", "--buffering", buf, "src.txt", "dst.txt")

			if got, want := c.ReadFile("dst.txt"), "one\ntwo\nthree"; got != want {
				t.Errorf("dst=%q, want=%q", got, want)
			}
		})
	}
}

func Test_Cp_Replaces_Destination_When_Atomic(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("src.txt", "new")
	c.WriteFile("dst.txt", "old content")

	c.MustRun("cp", "--atomic", "src.txt", "dst.txt")

	if got, want := c.ReadFile("dst.txt"), "new"; got != want {
		t.Errorf("dst=%q, want=%q", got, want)
	}

	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		t.Fatal(err)
	}

	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func Test_Cp_Uses_Configured_Perm_When_Creating_Destination(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".streamfile.json", `{"perm": "0600"}`)
	c.WriteFile("src.txt", "x")

	c.MustRun("cp", "src.txt", "dst.txt")

	info, err := os.Stat(filepath.Join(c.Dir, "dst.txt"))
	if err != nil {
		t.Fatal(err)
	}

	if got, want := info.Mode().Perm(), os.FileMode(0o600); got != want {
		t.Errorf("perm=%o, want=%o", got, want)
	}
}

func Test_Cp_Round_Trips_Through_Cat_When_Zstd_Used_On_Both_Sides(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	content := strings.Repeat("compress me please ", 500)
	c.WriteFile("src.txt", content)

	stdout := c.MustRun("cp", "--zstd", "src.txt", "dst.zst")
	cli.AssertContains(t, stdout, "(9500 bytes)")

	if len(c.ReadFile("dst.zst")) >= len(content) {
		t.Errorf("compressed output is not smaller than input")
	}

	if got := c.MustRun("cat", "--zstd", "dst.zst"); got != content {
		t.Errorf("round trip differs: got %d bytes, want %d", len(got), len(content))
	}
}

func Test_Cp_Fails_When_Arguments_Are_Invalid(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile("src.txt", "x")

	cli.AssertContains(t, c.MustFail("cp", "src.txt"), "source and destination are required")
	cli.AssertContains(t, c.MustFail("cp", "--mode", "truncate", "src.txt", "dst.txt"), "invalid mode")
	cli.AssertContains(t, c.MustFail("cp", "--buffering", "full", "src.txt", "dst.txt"), "invalid buffering")
	cli.AssertContains(t, c.MustFail("cp", "--atomic", "--mode", "append", "src.txt", "dst.txt"), "--atomic only supports")
}

func Test_Cp_Does_Not_Create_Destination_When_Source_Is_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("cp", "missing.txt", "dst.txt")

	cli.AssertContains(t, stderr, "open "+filepath.Join(c.Dir, "missing.txt"))

	_, err := os.Stat(filepath.Join(c.Dir, "dst.txt"))
	if !os.IsNotExist(err) {
		t.Errorf("dst should not exist, stat err=%v", err)
	}
}
