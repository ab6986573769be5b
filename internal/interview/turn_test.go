package interview

import "testing"

func TestTurn_PhaseTransitions(t *testing.T) {
	t.Parallel()

	var tr turn
	if tr.phase != phaseCollectingQuestion {
		t.Fatalf("initial phase = %v, want collecting question", tr.phase)
	}

	tr.AppendQuestion("What is ")
	tr.AppendQuestion("a mutex?")
	if tr.phase != phaseCollectingQuestion {
		t.Errorf("phase = %v after agent fragments, want collecting question", tr.phase)
	}

	tr.AppendAnswer("A lock.")
	if tr.phase != phaseCollectingAnswer {
		t.Errorf("phase = %v after candidate segment, want collecting answer", tr.phase)
	}

	q, a := tr.Flush()
	if q != "What is a mutex?" {
		t.Errorf("question = %q", q)
	}
	if a != "A lock." {
		t.Errorf("answer = %q", a)
	}
	if tr.phase != phaseCollectingQuestion {
		t.Errorf("phase = %v after flush, want collecting question", tr.phase)
	}
	if tr.Question() != "" || tr.Answer() != "" {
		t.Error("buffers not cleared by flush")
	}
}

func TestTurn_AnswerSegmentsJoined(t *testing.T) {
	t.Parallel()

	var tr turn
	tr.AppendAnswer("First utterance.")
	tr.AppendAnswer("Second utterance.")
	if got := tr.Answer(); got != "First utterance. Second utterance." {
		t.Errorf("answer = %q", got)
	}
}

func TestTurn_LateAgentFragmentStaysWithQuestion(t *testing.T) {
	t.Parallel()

	var tr turn
	tr.AppendQuestion("Explain interfaces")
	tr.AppendAnswer("They define behavior.")
	tr.AppendQuestion(", and their zero value?")

	q, a := tr.Flush()
	if q != "Explain interfaces, and their zero value?" {
		t.Errorf("question = %q", q)
	}
	if a != "They define behavior." {
		t.Errorf("answer = %q", a)
	}
}
