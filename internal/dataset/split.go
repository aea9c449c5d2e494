package dataset

import (
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// Split holds row indexes of the two partitions.
type Split struct {
	Train []int
	Test  []int
}

// StratifiedSplit partitions row indexes so that each class keeps its share
// in both partitions. The test partition has ceil(testSize*n) rows. The same
// labels, testSize and seed always give the same split.
func StratifiedSplit(labels []int, testSize float64, seed uint64) (Split, error) {
	n := len(labels)
	if testSize <= 0 || testSize >= 1 {
		return Split{}, apperr.New(apperr.InvalidInput, "test size %v must be in (0, 1)", testSize)
	}

	byClass := map[int][]int{}
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	// the epsilon keeps 0.2*15 from rounding up to 4
	nTest := int(math.Ceil(testSize*float64(n) - 1e-9))
	nTrain := n - nTest

	for _, c := range classes {
		if len(byClass[c]) < 2 {
			return Split{}, apperr.New(apperr.InsufficientData,
				"class %d has %d member(s); stratification needs at least 2", c, len(byClass[c]))
		}
	}
	if nTest < len(classes) || nTrain < len(classes) {
		return Split{}, apperr.New(apperr.InsufficientData,
			"%d rows cannot hold %d classes in both partitions (train=%d test=%d)",
			n, len(classes), nTrain, nTest)
	}

	quota := allocate(classes, byClass, nTest, n)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var s Split
	for _, c := range classes {
		members := slices.Clone(byClass[c])
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		s.Test = append(s.Test, members[:quota[c]]...)
		s.Train = append(s.Train, members[quota[c]:]...)
	}

	// interleave classes so partitions are not grouped by label
	rng.Shuffle(len(s.Train), func(i, j int) { s.Train[i], s.Train[j] = s.Train[j], s.Train[i] })
	rng.Shuffle(len(s.Test), func(i, j int) { s.Test[i], s.Test[j] = s.Test[j], s.Test[i] })

	return s, nil
}

// allocate distributes nTest test slots over classes proportionally using
// largest remainders. Every class keeps at least one training and, while
// slots allow, one test member.
func allocate(classes []int, byClass map[int][]int, nTest, n int) map[int]int {
	type share struct {
		class     int
		remainder float64
	}

	quota := make(map[int]int, len(classes))
	shares := make([]share, 0, len(classes))
	assigned := 0
	for _, c := range classes {
		exact := float64(nTest) * float64(len(byClass[c])) / float64(n)
		q := int(math.Floor(exact))
		q = max(1, min(q, len(byClass[c])-1))
		quota[c] = q
		assigned += q
		shares = append(shares, share{class: c, remainder: exact - math.Floor(exact)})
	}

	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].remainder > shares[j].remainder
	})

	for assigned < nTest {
		moved := false
		for _, sh := range shares {
			if assigned == nTest {
				break
			}
			if quota[sh.class] < len(byClass[sh.class])-1 {
				quota[sh.class]++
				assigned++
				moved = true
			}
		}
		if !moved {
			break
		}
	}
	for assigned > nTest {
		moved := false
		for i := len(shares) - 1; i >= 0 && assigned > nTest; i-- {
			if c := shares[i].class; quota[c] > 1 {
				quota[c]--
				assigned--
				moved = true
			}
		}
		if !moved {
			break
		}
	}
	return quota
}
