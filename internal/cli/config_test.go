package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/streamfile/internal/cli"
)

func Test_Print_Config_Defaults_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "effective_cwd="+c.Dir)
	cli.AssertContains(t, stdout, "chunk_size=32768")
	cli.AssertContains(t, stdout, "buffering=none")
	cli.AssertContains(t, stdout, "perm=0644")
	cli.AssertContains(t, stdout, "(defaults only)")
}

func Test_Print_Config_From_Project_File_With_Comments_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".streamfile.json", `{
		// JSONC is accepted
		"chunk_size": 4096,
		"buffering": "block:1024",
		"perm": "0600",
	}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "chunk_size=4096")
	cli.AssertContains(t, stdout, "buffering=block:1024")
	cli.AssertContains(t, stdout, "perm=0600")
	cli.AssertContains(t, stdout, "project_config="+filepath.Join(c.Dir, ".streamfile.json"))
}

func Test_Print_Config_Prefers_Explicit_File_Over_Project_File_When_Both_Exist(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".streamfile.json", `{"buffering": "line"}`)
	c.WriteFile("custom.json", `{"buffering": "block"}`)

	stdout := c.MustRun("-c", "custom.json", "print-config")

	cli.AssertContains(t, stdout, "buffering=block:32768")
	cli.AssertContains(t, stdout, "project_config="+filepath.Join(c.Dir, "custom.json"))
}

func Test_Print_Config_Loads_Global_File_Under_Project_File_When_Both_Exist(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	xdg := t.TempDir()
	c.Env["XDG_CONFIG_HOME"] = xdg

	globalPath := filepath.Join(xdg, "streamfile", "config.json")
	if err := os.MkdirAll(filepath.Dir(globalPath), 0o750); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(globalPath, []byte(`{"chunk_size": 10, "buffering": "line"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	c.WriteFile(".streamfile.json", `{"chunk_size": 20}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "chunk_size=20")
	cli.AssertContains(t, stdout, "buffering=line")
	cli.AssertContains(t, stdout, "global_config="+globalPath)
}

func Test_Chunk_Size_Flag_Overrides_Config_File_When_Both_Set(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".streamfile.json", `{"chunk_size": 4096}`)

	stdout := c.MustRun("--chunk-size", "7", "print-config")
	cli.AssertContains(t, stdout, "chunk_size=7")
}

func Test_Config_Errors_When_File_Is_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", `{"chunk_size": `, "invalid config file"},
		{"buffering", `{"buffering": "huge"}`, "invalid buffering"},
		{"perm", `{"perm": "rwx"}`, "perm must be an octal file mode"},
		{"chunk size", `{"chunk_size": 0}`, "chunk_size must be positive"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			c.WriteFile(".streamfile.json", tc.content)

			stderr := c.MustFail("print-config")
			cli.AssertContains(t, stderr, tc.want)
		})
	}
}

func Test_Config_Errors_When_Explicit_File_Is_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--config=nope.json", "print-config")

	cli.AssertContains(t, stderr, "config file not found")
}
