package selector

import "strconv"

// Separator joins selector parts.
const Separator = " >> "

// Chain scopes b to the elements matched by a.
func Chain(a, b string) string {
	return a + Separator + b
}

// ChainJSON scopes b to a like Chain, but keeps b as a single nested part so
// that modifiers appended later apply to the whole of b.
func ChainJSON(a, b string) string {
	return a + Separator + EngineChain + "=" + jsonQuote(b)
}

// Nth picks the i-th match of s. Negative indices count from the end.
func Nth(s string, i int) string {
	return s + Separator + EngineNth + "=" + strconv.Itoa(i)
}

// First picks the first match of s.
func First(s string) string {
	return Nth(s, 0)
}

// Last picks the last match of s.
func Last(s string) string {
	return Nth(s, -1)
}

// And matches elements matched by both a and b. The result depends on the
// order of the operands, the matched set does not.
func And(a, b string) string {
	return a + Separator + EngineAnd + "=" + jsonQuote(b)
}

// Or matches elements matched by either a or b, in document order.
func Or(a, b string) string {
	return a + Separator + EngineOr + "=" + jsonQuote(b)
}

// Has matches elements of a that contain an element matching inner.
func Has(a, inner string) string {
	return a + Separator + EngineHas + "=" + jsonQuote(inner)
}

// HasNot matches elements of a that contain no element matching inner.
func HasNot(a, inner string) string {
	return a + Separator + EngineHasNot + "=" + jsonQuote(inner)
}

// HasText matches elements of a whose text satisfies m.
func HasText(a string, m TextMatch) string {
	return a + Separator + EngineHasText + "=" + m.String()
}

// HasNotText matches elements of a whose text does not satisfy m.
func HasNotText(a string, m TextMatch) string {
	return a + Separator + EngineHasNotText + "=" + m.String()
}

// Visible keeps the elements of a whose visibility equals visible.
func Visible(a string, visible bool) string {
	return a + Separator + EngineVisible + "=" + strconv.FormatBool(visible)
}

// EnterFrame resolves inner inside the content document of the iframe
// matched by a.
func EnterFrame(a, inner string) string {
	return a + Separator + EngineControl + "=" + ControlEnterFrame + Separator + inner
}
