package parsing

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("name with options and parameters", func(t *testing.T) {
		cmd := Parse("c -p @a @b -l 5")

		if cmd.Name != "c" {
			t.Fatalf("expected name %q, got %q", "c", cmd.Name)
		}
		want := []Option{
			{Name: "p", Params: []string{"@a", "@b"}},
			{Name: "l", Params: []string{"5"}},
		}
		if !reflect.DeepEqual(cmd.Options, want) {
			t.Fatalf("expected options %v, got %v", want, cmd.Options)
		}
		if len(cmd.Args) != 0 {
			t.Fatalf("expected no args, got %v", cmd.Args)
		}
	})

	t.Run("bare command has no options", func(t *testing.T) {
		cmd := Parse("help")

		if cmd.Name != "help" {
			t.Fatalf("expected name %q, got %q", "help", cmd.Name)
		}
		if len(cmd.Options) != 0 || len(cmd.Args) != 0 {
			t.Fatalf("expected empty command, got %+v", cmd)
		}
	})

	t.Run("free text is kept as args not options", func(t *testing.T) {
		cmd := Parse("kick @alice bob")

		if len(cmd.Options) != 0 {
			t.Fatalf("expected no options, got %v", cmd.Options)
		}
		if !reflect.DeepEqual(cmd.Args, []string{"@alice", "bob"}) {
			t.Fatalf("unexpected args: %v", cmd.Args)
		}
	})

	t.Run("option without parameters", func(t *testing.T) {
		cmd := Parse("cc -f")

		want := []Option{{Name: "f"}}
		if !reflect.DeepEqual(cmd.Options, want) {
			t.Fatalf("expected %v, got %v", want, cmd.Options)
		}
		if cmd.Options[0].HasParams() {
			t.Fatal("expected option without parameters")
		}
	})

	t.Run("trailing and duplicate dashes are dropped", func(t *testing.T) {
		cmd := Parse("c --l 5- -")

		want := []Option{{Name: "l", Params: []string{"5"}}}
		if !reflect.DeepEqual(cmd.Options, want) {
			t.Fatalf("expected %v, got %v", want, cmd.Options)
		}
	})

	t.Run("name joined from several parameters", func(t *testing.T) {
		cmd := Parse("c -n my cool room -t 30")

		want := []Option{
			{Name: "n", Params: []string{"my", "cool", "room"}},
			{Name: "t", Params: []string{"30"}},
		}
		if !reflect.DeepEqual(cmd.Options, want) {
			t.Fatalf("expected %v, got %v", want, cmd.Options)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		cmd := Parse("")

		if cmd.Name != "" || len(cmd.Options) != 0 || len(cmd.Args) != 0 {
			t.Fatalf("expected zero command, got %+v", cmd)
		}
	})

	t.Run("trailing spaces after name", func(t *testing.T) {
		cmd := Parse("c   ")

		if cmd.Name != "c" || len(cmd.Options) != 0 || len(cmd.Args) != 0 {
			t.Fatalf("expected bare command, got %+v", cmd)
		}
	})

	t.Run("duplicate option names are preserved in order", func(t *testing.T) {
		cmd := Parse("c -t 5 -t 10")

		want := []Option{
			{Name: "t", Params: []string{"5"}},
			{Name: "t", Params: []string{"10"}},
		}
		if !reflect.DeepEqual(cmd.Options, want) {
			t.Fatalf("expected %v, got %v", want, cmd.Options)
		}
	})
}
