package ot

// winner reports whether a beats b under the deterministic tie-break rule:
// smaller clientId wins; if clientIds are equal, earlier timestamp wins.
func winner(a, b Operation) bool {
	if a.ClientID != b.ClientID {
		return a.ClientID < b.ClientID
	}
	return a.Timestamp <= b.Timestamp
}

// transformMoveVsMove implements spec.md §4.4 "MoveCard vs MoveCard".
//
// Different cards: identity. Same card and op1 wins: identity — op1 is the
// priority move and is applied as originally intended. Same card and op1
// loses: op1's `from` is rewritten to op2's `to`, so op1 now describes
// moving the card from where the winner left it; op1's own `to` is left
// untouched by design (see SPEC_FULL.md / Open Question (b)).
func transformMoveVsMove(op1, op2 Operation) TransformResult {
	if op1.MoveCard == nil || op2.MoveCard == nil {
		return TransformResult{Transformed: op1}
	}
	if op1.MoveCard.CardID != op2.MoveCard.CardID {
		return TransformResult{Transformed: op1}
	}
	if winner(op1, op2) {
		return TransformResult{Transformed: op1}
	}

	out := op1.Clone()
	out.MoveCard.From = op2.MoveCard.To
	return TransformResult{Transformed: out}
}

// transformTapVsTap implements spec.md §4.4 "TapCard vs TapCard".
//
// Different cards, or both operations set the same tapped value: identity.
// Conflicting target states: later timestamp wins (earlier clientId breaks
// ties); the loser's `tapped` is rewritten to the winner's value so both
// replicas converge on the same flag.
func transformTapVsTap(op1, op2 Operation) TransformResult {
	if op1.TapCard == nil || op2.TapCard == nil {
		return TransformResult{Transformed: op1}
	}
	if op1.TapCard.CardID != op2.TapCard.CardID {
		return TransformResult{Transformed: op1}
	}
	if op1.TapCard.Tapped == op2.TapCard.Tapped {
		return TransformResult{Transformed: op1}
	}

	op2Wins := op2.Timestamp > op1.Timestamp ||
		(op2.Timestamp == op1.Timestamp && op2.ClientID < op1.ClientID)
	if !op2Wins {
		return TransformResult{Transformed: op1}
	}

	out := op1.Clone()
	out.TapCard.Tapped = op2.TapCard.Tapped
	return TransformResult{Transformed: out}
}

// transformPlayVsPlay implements spec.md §4.4 "PlayCard vs PlayCard".
//
// Different cards, or same card with op1 winning: identity. Same card with
// op1 losing: op1's position is offset by (+10, +10), a deterministic nudge
// that avoids exact overlap while still placing the card.
func transformPlayVsPlay(op1, op2 Operation) TransformResult {
	if op1.PlayCard == nil || op2.PlayCard == nil {
		return TransformResult{Transformed: op1}
	}
	if op1.PlayCard.CardID != op2.PlayCard.CardID {
		return TransformResult{Transformed: op1}
	}
	if winner(op1, op2) {
		return TransformResult{Transformed: op1}
	}

	out := op1.Clone()
	out.PlayCard.Position.X += 10
	out.PlayCard.Position.Y += 10
	return TransformResult{Transformed: out}
}
