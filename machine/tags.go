package machine

// A Block is the bookkeeping of one cache line.
type Block struct {
	Tag     uint64
	WayID   int
	SetID   int
	IsValid bool
	RRPV    uint8
}

// A Set is a list of blocks where a certain piece of memory can be stored.
// LRUQueue lists way IDs from least to most recently used.
type Set struct {
	Blocks   []Block
	LRUQueue []int
}

type tagArray struct {
	numSets   int
	numWays   int
	blockSize uint64
	sets      []Set
}

func newTagArray(numSets, numWays int, blockSize uint64) *tagArray {
	t := &tagArray{
		numSets:   numSets,
		numWays:   numWays,
		blockSize: blockSize,
	}

	t.reset()

	return t
}

// totalSize returns the maximum number of bytes can be stored in the cache.
func (t *tagArray) totalSize() uint64 {
	return uint64(t.numSets) * uint64(t.numWays) * t.blockSize
}

func (t *tagArray) blockAddr(addr uint64) uint64 {
	return addr / t.blockSize * t.blockSize
}

func (t *tagArray) getSet(addr uint64) (set *Set, setID int) {
	setID = int(addr / t.blockSize % uint64(t.numSets))
	set = &t.sets[setID]

	return
}

// lookup finds the block holding addr.
func (t *tagArray) lookup(addr uint64) (Block, bool) {
	tag := t.blockAddr(addr)
	set, _ := t.getSet(addr)

	for _, block := range set.Blocks {
		if block.IsValid && block.Tag == tag {
			return block, true
		}
	}

	return Block{}, false
}

func (t *tagArray) update(block Block) {
	t.sets[block.SetID].Blocks[block.WayID] = block
}

// visit moves the block to the end of the LRU queue.
func (t *tagArray) visit(block Block) {
	set := &t.sets[block.SetID]
	queue := make([]int, 0, len(set.LRUQueue))

	for _, w := range set.LRUQueue {
		if w != block.WayID {
			queue = append(queue, w)
		}
	}

	set.LRUQueue = append(queue, block.WayID)
}

// reset marks all the blocks invalid.
func (t *tagArray) reset() {
	t.sets = make([]Set, t.numSets)
	for i := 0; i < t.numSets; i++ {
		for j := 0; j < t.numWays; j++ {
			t.sets[i].Blocks = append(t.sets[i].Blocks, Block{
				SetID: i,
				WayID: j,
			})
			t.sets[i].LRUQueue = append(t.sets[i].LRUQueue, j)
		}
	}
}
