package cmd

import "testing"

func TestCommandTree(t *testing.T) {
	root := newRootCommand()

	for _, path := range [][]string{
		{"http", "start"},
		{"system", "init"},
		{"system", "migrate"},
		{"system", "sync-roles"},
		{"system", "issue-token"},
		{"system", "gendocs"},
	} {
		c, rest, err := root.Find(path)
		if err != nil || len(rest) != 0 || c.Name() != path[len(path)-1] {
			t.Errorf("%v: got %v rest=%v err=%v", path, c, rest, err)
		}
	}
	if f := root.PersistentFlags().Lookup("config"); f == nil || f.DefValue != "config.yaml" {
		t.Errorf("config flag = %+v", f)
	}
}
