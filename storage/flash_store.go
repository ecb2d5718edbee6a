package storage

import (
	"sync"
	"time"
)

// flashBadBlockMark is written to a block's first page's spare byte 0 to
// condemn it. Grounded on FLASH_SIM_BAD_BLOCK_MARK from the flash
// simulator this backend imitates.
const flashBadBlockMark = 0xA5

// flashPage is one page of a simulated NAND block: a data region and a
// small spare region alongside it, exactly as the simulator models a
// physical page.
type flashPage struct {
	data  []byte
	spare []byte
}

// flashBlock is a fixed number of pages that must be erased together
// before any of its pages can be programmed again.
type flashBlock struct {
	pages []flashPage
}

// FlashStore is a simulated raw-NAND Adapter: pages can only be
// programmed (bits cleared, never set) until their containing block is
// erased, and a block can be marked bad and skipped by allocation.
//
// Grounded on original_source/store/flash_sim.c: page programming is a
// byte-wise AND into the existing contents (data[i] &= src[i]), block
// erase resets every page's data and spare to 0xFF, and a block's
// good/bad state lives in page 0's spare byte 0.
type FlashStore struct {
	mu sync.Mutex

	pageSize  int
	spareSize int
	pagesPerBlock int

	blocks []flashBlock

	// pageOf maps a storage ID to the (block, page) it occupies, and
	// dataLen records how many of pageSize bytes are meaningful --
	// the simulator itself has no notion of a logical record length,
	// but an Adapter must report exactly what was stored.
	pageOf  map[ID]flashLocation
	dataLen map[ID]int
	pending map[ID]bool
	order   []ID

	nextID    ID
	nextBlock int
	nextPage  int
}

type flashLocation struct {
	block, page int
}

// NewFlashStore allocates a simulated device of numBlocks blocks, each
// pagesPerBlock pages of pageSize data bytes plus a small spare area,
// mirroring bplib_flash_sim_initialize's device allocation.
func NewFlashStore(numBlocks, pagesPerBlock, pageSize int) *FlashStore {
	const spareSize = 16

	fs := &FlashStore{
		pageSize:      pageSize,
		spareSize:     spareSize,
		pagesPerBlock: pagesPerBlock,
		blocks:        make([]flashBlock, numBlocks),
		pageOf:        make(map[ID]flashLocation),
		dataLen:       make(map[ID]int),
		pending:       make(map[ID]bool),
	}

	for b := range fs.blocks {
		pages := make([]flashPage, pagesPerBlock)
		for p := range pages {
			pages[p] = flashPage{
				data:  make([]byte, pageSize),
				spare: make([]byte, spareSize),
			}
			for i := range pages[p].data {
				pages[p].data[i] = 0xFF
			}
			for i := range pages[p].spare {
				pages[p].spare[i] = 0xFF
			}
		}
		fs.blocks[b].pages = pages
	}

	return fs
}

// blockIsBad reports whether block's first page carries the bad-block
// mark, mirroring bplib_flash_sim_block_is_bad.
func (fs *FlashStore) blockIsBad(block int) bool {
	return fs.blocks[block].pages[0].spare[0] == flashBadBlockMark
}

// MarkBad condemns block, mirroring bplib_flash_sim_block_mark_bad.
func (fs *FlashStore) MarkBad(block int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.blocks[block].pages[0].spare[0] = flashBadBlockMark
}

// EraseBlock resets every page in block to all-ones data and spare,
// mirroring bplib_flash_sim_block_erase. A bad-block mark on page 0 is
// lost by design, matching the simulator: erasing a block un-condemns it.
func (fs *FlashStore) EraseBlock(block int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.eraseBlockLocked(block)
}

func (fs *FlashStore) eraseBlockLocked(block int) {
	for p := range fs.blocks[block].pages {
		page := &fs.blocks[block].pages[p]
		for i := range page.data {
			page.data[i] = 0xFF
		}
		for i := range page.spare {
			page.spare[i] = 0xFF
		}
	}
}

// programPage performs the AND-in-place write the simulator's
// bplib_flash_sim_page_write does: a page can only have bits cleared
// between erases, never set, so writing twice without an erase can only
// narrow the stored value.
func programPage(page *flashPage, data []byte) {
	for i := 0; i < len(data) && i < len(page.data); i++ {
		page.data[i] &= data[i]
	}
}

// nextWritableLocation advances past bad blocks and full blocks to find
// the next (block, page) to program, erasing a fresh block before its
// first use the way a real flash translation layer would.
func (fs *FlashStore) nextWritableLocation() (int, int, bool) {
	for fs.nextBlock < len(fs.blocks) {
		if fs.blockIsBad(fs.nextBlock) {
			fs.nextBlock++
			fs.nextPage = 0
			continue
		}
		if fs.nextPage == 0 {
			fs.eraseBlockLocked(fs.nextBlock)
		}
		if fs.nextPage < fs.pagesPerBlock {
			block, page := fs.nextBlock, fs.nextPage
			fs.nextPage++
			if fs.nextPage >= fs.pagesPerBlock {
				fs.nextBlock++
				fs.nextPage = 0
			}
			return block, page, true
		}
		fs.nextBlock++
		fs.nextPage = 0
	}
	return 0, 0, false
}

func (fs *FlashStore) Create(isRecord bool, data []byte, timeout time.Duration) (ID, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if len(data) > fs.pageSize {
		return 0, newFlashError("record larger than one page")
	}

	block, page, ok := fs.nextWritableLocation()
	if !ok {
		return 0, newFlashError("device full")
	}

	programPage(&fs.blocks[block].pages[page], data)
	if isRecord {
		fs.blocks[block].pages[page].spare[1] = 1
	}

	fs.nextID++
	id := fs.nextID
	fs.pageOf[id] = flashLocation{block: block, page: page}
	fs.dataLen[id] = len(data)

	return id, nil
}

func (fs *FlashStore) Enqueue(id ID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.pageOf[id]; !ok {
		return ErrNotFound{ID: id}
	}
	if !fs.pending[id] {
		fs.pending[id] = true
		fs.order = append(fs.order, id)
	}
	return nil
}

// Dequeue returns the oldest pending id. It never waits: timeout is
// ignored, and ErrTimeout is returned at once when nothing is pending.
func (fs *FlashStore) Dequeue(timeout time.Duration) (ID, []byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for len(fs.order) > 0 {
		id := fs.order[0]
		fs.order = fs.order[1:]
		if !fs.pending[id] {
			continue
		}
		fs.pending[id] = false
		data, err := fs.retrieveLocked(id)
		return id, data, err
	}
	return 0, nil, ErrTimeout{}
}

func (fs *FlashStore) retrieveLocked(id ID) ([]byte, error) {
	loc, ok := fs.pageOf[id]
	if !ok {
		return nil, ErrNotFound{ID: id}
	}
	n := fs.dataLen[id]
	page := fs.blocks[loc.block].pages[loc.page]

	out := make([]byte, n)
	copy(out, page.data[:n])
	return out, nil
}

func (fs *FlashStore) Retrieve(id ID) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.retrieveLocked(id)
}

func (fs *FlashStore) Release(id ID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.pending[id] = false
	return nil
}

func (fs *FlashStore) Relinquish(id ID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.pageOf[id]; !ok {
		return ErrNotFound{ID: id}
	}
	delete(fs.pageOf, id)
	delete(fs.dataLen, id)
	delete(fs.pending, id)
	return nil
}

func (fs *FlashStore) GetCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.pageOf)
}

type flashError struct{ msg string }

func newFlashError(msg string) error { return flashError{msg: msg} }
func (e flashError) Error() string   { return "flash store: " + e.msg }
