package interview

import "strings"

// turnPhase tracks which scratch buffer the in-progress turn is filling.
type turnPhase int

const (
	// phaseCollectingQuestion: agent speech fragments accumulate into the
	// question buffer.
	phaseCollectingQuestion turnPhase = iota

	// phaseCollectingAnswer: the candidate has started answering; finalized
	// speech segments accumulate into the answer buffer.
	phaseCollectingAnswer
)

// turn is the per-question scratch state: two short-lived accumulators that
// are committed to the durable logs and cleared when the agent's
// save_assessment tool call flushes the turn.
//
// Not safe for concurrent use; the orchestrator serializes access.
type turn struct {
	phase    turnPhase
	question strings.Builder
	answer   strings.Builder
}

// AppendQuestion adds an agent speech fragment to the question buffer.
// Fragments arriving after the candidate started answering still land in the
// question buffer: they belong to the agent's follow-up phrasing of the same
// turn.
func (t *turn) AppendQuestion(fragment string) {
	t.question.WriteString(fragment)
}

// AppendAnswer adds a finalized candidate speech segment to the answer buffer
// and moves the turn into the answering phase. Segments are joined with a
// space since the recognizer finalizes per utterance.
func (t *turn) AppendAnswer(segment string) {
	t.phase = phaseCollectingAnswer
	if t.answer.Len() > 0 {
		t.answer.WriteString(" ")
	}
	t.answer.WriteString(segment)
}

// Question returns the accumulated question text, trimmed.
func (t *turn) Question() string {
	return strings.TrimSpace(t.question.String())
}

// Answer returns the accumulated answer text, trimmed.
func (t *turn) Answer() string {
	return strings.TrimSpace(t.answer.String())
}

// Flush returns the trimmed question and answer and resets the turn for the
// next question.
func (t *turn) Flush() (question, answer string) {
	question = t.Question()
	answer = t.Answer()
	t.question.Reset()
	t.answer.Reset()
	t.phase = phaseCollectingQuestion
	return question, answer
}
