package ann

import (
	"github.com/born-ml/april/internal/fatal"
	"github.com/born-ml/april/internal/matrix"
	"github.com/born-ml/april/internal/token"
)

// catch runs f and returns the fatal error it raised, if any.
func catch(f func()) (err error) {
	defer fatal.Recover(&err)
	f()
	return nil
}

// sequence is a random.Source replaying fixed draws.
type sequence struct {
	values []float64
	next   int
}

func (s *sequence) Float64() float64 {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

func (s *sequence) IntN(n int) int { return int(s.Float64() * float64(n)) }

func tok(data []float32, dims ...int) token.Token {
	return token.NewMatrix(matrix.FromSlice(data, dims))
}

func values(t token.Token) []float32 {
	return token.ToMatrix("test", t).Values()
}
