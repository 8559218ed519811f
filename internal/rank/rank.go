// Package rank orders search matches and search-history suggestions.
//
// Entry score:
//
//	score = w_rel*text_relevance + w_rec*recency + w_len*length_norm + w_type*type_weight
//
// text_relevance is BM25 divided by the best BM25 among the matches, so it
// lies in [0,1] like the other components. Equal scores rank the more
// recent entry_date first, then the lower entry id.
//
// Suggestions use a separate recency/frequency blend; history never feeds
// entry ranking.
package rank

import (
	"math"
	"sort"
	"time"

	"github.com/roach88/quill/internal/journal"
)

// Weights blend the score components.
type Weights struct {
	Relevance float64
	Recency   float64
	Length    float64
	Type      float64
}

// Config parameterizes the ranker.
type Config struct {
	Weights     Weights
	K1          float64       // BM25 term-frequency saturation
	B           float64       // BM25 length normalization strength
	HalfLife    time.Duration // recency half-life
	TypeWeights map[journal.Type]float64
}

// DefaultConfig returns the default blend: 0.6 relevance, 0.3 recency,
// 0.05 length, 0.05 type; BM25 k1=1.2, b=0.75; 30-day half-life.
func DefaultConfig() Config {
	return Config{
		Weights:  Weights{Relevance: 0.6, Recency: 0.3, Length: 0.05, Type: 0.05},
		K1:       1.2,
		B:        0.75,
		HalfLife: 30 * 24 * time.Hour,
		TypeWeights: map[journal.Type]float64{
			journal.TypeDaily:   1.0,
			journal.TypeWeekly:  0.9,
			journal.TypeMonthly: 0.8,
		},
	}
}

// Corpus holds collection statistics for the query's terms.
type Corpus struct {
	Docs      int            // live entries
	AvgLength float64        // mean token count
	DocFreq   map[string]int // entries containing each query term
}

// Doc is one matching entry.
type Doc struct {
	ID       int64
	Date     journal.Date
	Type     journal.Type
	Length   int            // token count
	TermFreq map[string]int // occurrences of each query term
}

// Scored is a ranked match with its score breakdown.
type Scored struct {
	Doc
	Score      float64
	BM25       float64
	Relevance  float64
	Recency    float64
	LengthNorm float64
	TypeWeight float64
}

// Ranker scores and orders matches.
type Ranker struct {
	cfg Config
}

// New creates a Ranker.
func New(cfg Config) *Ranker {
	return &Ranker{cfg: cfg}
}

// Rank scores docs against corpus at time now and returns them best first.
func (r *Ranker) Rank(docs []Doc, corpus Corpus, now time.Time) []Scored {
	out := make([]Scored, len(docs))
	best := 0.0
	for i, d := range docs {
		bm := r.BM25(d, corpus)
		if bm > best {
			best = bm
		}
		out[i] = Scored{
			Doc:        d,
			BM25:       bm,
			Recency:    r.Recency(d.Date, now),
			LengthNorm: LengthNorm(d.Length, corpus.AvgLength),
			TypeWeight: r.typeWeight(d.Type),
		}
	}

	w := r.cfg.Weights
	for i := range out {
		if best > 0 {
			out[i].Relevance = out[i].BM25 / best
		}
		out[i].Score = w.Relevance*out[i].Relevance +
			w.Recency*out[i].Recency +
			w.Length*out[i].LengthNorm +
			w.Type*out[i].TypeWeight
	}

	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	return out
}

// Less orders a before b: higher score, then later date, then lower id.
func Less(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Date != b.Date {
		return a.Date > b.Date
	}
	return a.ID < b.ID
}

// BM25 scores d for every term in corpus.DocFreq.
func (r *Ranker) BM25(d Doc, corpus Corpus) float64 {
	if corpus.Docs == 0 {
		return 0
	}
	avg := corpus.AvgLength
	if avg <= 0 {
		avg = 1
	}
	norm := 1 - r.cfg.B + r.cfg.B*float64(d.Length)/avg

	score := 0.0
	for term, df := range corpus.DocFreq {
		tf := float64(d.TermFreq[term])
		if tf == 0 {
			continue
		}
		idf := math.Log(1 + (float64(corpus.Docs)-float64(df)+0.5)/(float64(df)+0.5))
		score += idf * tf * (r.cfg.K1 + 1) / (tf + r.cfg.K1*norm)
	}
	return score
}

// Recency decays exponentially with the age of date relative to now.
// Entries dated today or later score 1.
func (r *Ranker) Recency(date journal.Date, now time.Time) float64 {
	return decay(now.Sub(date.Time()), r.cfg.HalfLife)
}

// LengthNorm is 1 at the corpus mean length and falls off symmetrically
// in log space for entries much shorter or longer than the mean.
func LengthNorm(length int, avg float64) float64 {
	if avg <= 0 {
		return 1
	}
	l := math.Max(float64(length), 1)
	return 1 / (1 + math.Abs(math.Log(l/avg)))
}

func (r *Ranker) typeWeight(t journal.Type) float64 {
	if w, ok := r.cfg.TypeWeights[t]; ok {
		return w
	}
	return 1
}

func decay(age, halfLife time.Duration) float64 {
	if age <= 0 || halfLife <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(halfLife))
}
