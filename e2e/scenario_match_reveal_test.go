package e2e

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cinematch/domain"
)

type testMatchRevealSuite struct {
	BaseSuite
}

func TestMatchRevealSuite(t *testing.T) {
	suite.Run(t, &testMatchRevealSuite{})
}

// TestFullMatchToRevealFlow walks the whole stranger journey: queueing,
// pairing through the bus, the anonymous exchange, the reveal gate and
// finally the search index.
func (s *testMatchRevealSuite) TestFullMatchToRevealFlow() {
	alice := s.Client("Alice connects", "alice-e2e", "Alice")
	bob := s.Client("Bob connects", "bob-e2e", "Bob")

	var room roomJSON

	// --- STEP 1: EMPTY QUEUE ---
	s.Run("Step 1: Alice queues against an empty queue", func() {
		paired, r := alice.Match()
		s.Require().False(paired, "Nobody was waiting, Alice cannot be paired yet")
		s.Require().Nil(r)
	})

	// --- STEP 2: PAIRING ---
	s.Run("Step 2: Bob consumes the waiting entry and pairs", func() {
		paired, r := bob.Match()
		s.Require().True(paired, "Alice was waiting, Bob must pair immediately")
		s.Require().NotNil(r)
		s.Require().Equal(string(domain.RoomMatch), r.Kind)
		s.Require().Empty(r.Name, "Match rooms are unnamed")
		room = *r
	})

	// --- STEP 3: ASYNC NOTIFICATION ---
	s.Run("Step 3: the pairing reaches Alice through her feed", func() {
		frame := alice.ExpectFrame("match.found", 5*time.Second)
		s.Require().NotNil(frame.Room)
		s.Require().Equal(room.ID, frame.Room.ID, "Both ends must land in the same room")
	})

	// --- STEP 4: ROOM FEEDS ---
	s.Run("Step 4: both members join the room feed", func() {
		alice.Join(room.ID)
		bob.Join(room.ID)
	})

	// --- STEP 5: ANONYMOUS EXCHANGE ---
	s.Run("Step 5: messages travel aliased, with no author id on the wire", func() {
		posted := alice.Post(room.ID, "fan of hitchcock by any chance")
		s.Require().True(posted.Anonymous)
		s.Require().True(domain.KnownAlias(posted.Author), "Display name must come from the alias pool")

		received := bob.ExpectFrame("message.appended", 5*time.Second)
		s.Require().NotNil(received.Message)
		s.Require().True(received.Message.Anonymous)
		s.Require().Empty(received.Message.AuthorID, "The wire must not name the author")
		s.Require().False(received.Message.Mine)

		echo := alice.ExpectFrame("message.appended", 5*time.Second)
		s.Require().NotNil(echo.Message)
		s.Require().True(echo.Message.Mine, "The author recognizes their own echo")
	})

	// --- STEP 6: GATE HOLDS ---
	s.Run("Step 6: the reveal gate holds below the threshold", func() {
		status, _ := alice.TryReveal(room.ID)
		s.Require().Equal(http.StatusPreconditionFailed, status)
	})

	// --- STEP 7: CROSSING THE THRESHOLD ---
	s.Run("Step 7: enough messages open the gate", func() {
		// One message is already in; the gate opens strictly above the
		// threshold, so post exactly threshold more.
		for i := 0; i < s.Config.RevealThreshold; i++ {
			author := alice
			if i%2 == 0 {
				author = bob
			}
			author.Post(room.ID, fmt.Sprintf("getting to know you, message %d", i+2))
		}

		state := alice.RevealState(room.ID)
		s.Require().Equal(s.Config.RevealThreshold+1, state.Messages)
		s.Require().Equal("open", state.Phase)
	})

	// --- STEP 8: ONE-WAY REVEAL ---
	s.Run("Step 8: Alice reveals and Bob is notified", func() {
		status, state := alice.TryReveal(room.ID)
		s.Require().Equal(http.StatusOK, status)
		s.Require().Len(state.Disclosures, 1)
		s.Require().Equal("Alice", state.Disclosures[0].Username)

		frame := bob.ExpectFrame("identity.revealed", 5*time.Second)
		s.Require().NotNil(frame.Disclosure)
		s.Require().Equal("alice-e2e", frame.Disclosure.UserID)
	})

	// --- STEP 9: ANONYMITY IS PER MESSAGE, NOT PER REVEAL ---
	s.Run("Step 9: messages stay aliased after the reveal", func() {
		posted := alice.Post(room.ID, "yes it was me all along")
		s.Require().True(posted.Anonymous, "The disclosure names the user, messages keep their aliases")
		s.Require().True(domain.KnownAlias(posted.Author))
	})

	// --- STEP 10: SEARCH ---
	s.Run("Step 10: the exchange reaches the search index", func() {
		s.Require().Eventually(func() bool {
			return alice.Search(room.ID, "hitchcock").Total >= 1
		}, 10*time.Second, 200*time.Millisecond, "Message never showed up in the index")
	})

	// --- STEP 11: HISTORY CONVERGES ---
	s.Run("Step 11: both members read the same history", func() {
		fromAlice := alice.History(room.ID)
		fromBob := bob.History(room.ID)
		s.Require().Len(fromAlice, s.Config.RevealThreshold+2)
		s.Require().Len(fromBob, len(fromAlice))
		for i := range fromAlice {
			s.Require().Equal(fromAlice[i].ID, fromBob[i].ID, "Order must be identical for both readers")
		}
	})
}
