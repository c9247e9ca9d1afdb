// Package classify implements the question heuristic for reply text.
//
// The classifier answers one question: does this reply look like a
// technical question a maintainer should see? It is a layered lexical
// heuristic (question marks, interrogative openers, technical trigger
// words in short texts), not natural-language understanding.
//
// Design decision: rules are modeled as an ordered list of independent
// predicates rather than one nested conditional. Each rule can be
// tested in isolation, the order is explicit, and adding or removing a
// rule does not disturb the others. The marker set, trigger-token set,
// and short-text threshold are configuration, exposed through options,
// because the right values vary by audience and language and were never
// principled constants to begin with.
package classify
