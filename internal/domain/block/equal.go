package block

import "strings"

// Normalize merges adjacent runs with identical formatting and drops empty
// runs. It returns a new slice and leaves the input untouched.
func Normalize(runs []Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].SameStyle(r) {
			out[n-1].Text += r.Text
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeTree applies Normalize to every block in the tree.
func NormalizeTree(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		b.Runs = Normalize(b.Runs)
		b.Children = NormalizeTree(b.Children)
		out[i] = b
	}
	return out
}

// Equal reports semantic equality of two block sequences: same kinds and
// attributes, same text content up to whitespace, same nesting. Formatting of
// runs is not compared; use EqualStyled for that.
func Equal(a, b []Block) bool {
	return equal(a, b, false)
}

// EqualStyled is Equal plus run formatting, compared after normalization.
func EqualStyled(a, b []Block) bool {
	return equal(a, b, true)
}

func equal(a, b []Block, styled bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Kind != y.Kind || x.Level != y.Level || x.Checked != y.Checked ||
			x.Language != y.Language || x.URL != y.URL {
			return false
		}
		if x.Kind == KindCode {
			if strings.TrimRight(x.PlainText(), "\n") != strings.TrimRight(y.PlainText(), "\n") {
				return false
			}
		} else if CollapseSpace(x.PlainText()) != CollapseSpace(y.PlainText()) {
			return false
		}
		if styled && !sameRuns(x.Runs, y.Runs) {
			return false
		}
		if !equal(x.Children, y.Children, styled) {
			return false
		}
	}
	return true
}

func sameRuns(a, b []Run) bool {
	a, b = Normalize(a), Normalize(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].SameStyle(b[i]) || CollapseSpace(a[i].Text) != CollapseSpace(b[i].Text) {
			return false
		}
	}
	return true
}

// CollapseSpace trims s and folds every whitespace run into a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
