package checksum

const (
	prngMBig  = int32(2147483647)
	prngMSeed = int32(161803398)
)

// subtractiveRandom はKnuthの減算型乱数生成器。
// 既存の発行済みハードウェアIDと同じマスク列を再現するため、この実装から変えてはならない。
type subtractiveRandom struct {
	seeds  [56]int32
	inext  int
	inextp int
}

func newSubtractiveRandom(seed int32) *subtractiveRandom {
	r := &subtractiveRandom{}
	if seed < 0 {
		seed = -seed
	}
	mj := prngMSeed - seed
	r.seeds[55] = mj
	mk := int32(1)
	for i := 1; i < 55; i++ {
		ii := (21 * i) % 55
		r.seeds[ii] = mk
		mk = mj - mk
		if mk < 0 {
			mk += prngMBig
		}
		mj = r.seeds[ii]
	}
	for k := 1; k < 5; k++ {
		for i := 1; i < 56; i++ {
			r.seeds[i] -= r.seeds[1+(i+30)%55]
			if r.seeds[i] < 0 {
				r.seeds[i] += prngMBig
			}
		}
	}
	r.inext = 0
	r.inextp = 21
	return r
}

func (r *subtractiveRandom) sample() int32 {
	next := r.inext + 1
	if next >= 56 {
		next = 1
	}
	nextp := r.inextp + 1
	if nextp >= 56 {
		nextp = 1
	}
	v := r.seeds[next] - r.seeds[nextp]
	if v == prngMBig {
		v--
	}
	if v < 0 {
		v += prngMBig
	}
	r.seeds[next] = v
	r.inext = next
	r.inextp = nextp
	return v
}

// bytes はn個の擬似乱数バイトを返す。
func (r *subtractiveRandom) bytes(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(r.sample() % 256)
	}
	return buf
}
