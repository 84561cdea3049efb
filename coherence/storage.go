package coherence

import (
	"fmt"
)

// A Storage is the memory behind a bank. It is byte addressed and allocates
// its pages only when they are first touched.
type Storage struct {
	pageSize uint64
	capacity uint64
	pages    map[uint64][]byte
}

// NewStorage creates a storage of the given capacity in bytes.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		pageSize: 4096,
		capacity: capacity,
		pages:    make(map[uint64][]byte),
	}
}

// Capacity returns the size of the storage in bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) page(addr uint64) []byte {
	base := addr - addr%s.pageSize

	p, ok := s.pages[base]
	if !ok {
		p = make([]byte, s.pageSize)
		s.pages[base] = p
	}

	return p
}

func (s *Storage) checkRange(addr, length uint64) error {
	if addr+length > s.capacity || addr+length < addr {
		return fmt.Errorf("access [0x%x, 0x%x) is beyond the capacity 0x%x",
			addr, addr+length, s.capacity)
	}

	return nil
}

// Read returns a copy of length bytes starting at addr.
func (s *Storage) Read(addr, length uint64) ([]byte, error) {
	if err := s.checkRange(addr, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	for done := uint64(0); done < length; {
		curr := addr + done
		inPage := curr % s.pageSize
		n := min(length-done, s.pageSize-inPage)

		copy(res[done:done+n], s.page(curr)[inPage:inPage+n])
		done += n
	}

	return res, nil
}

// Write copies data into the storage starting at addr.
func (s *Storage) Write(addr uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.checkRange(addr, length); err != nil {
		return err
	}

	for done := uint64(0); done < length; {
		curr := addr + done
		inPage := curr % s.pageSize
		n := min(length-done, s.pageSize-inPage)

		copy(s.page(curr)[inPage:inPage+n], data[done:done+n])
		done += n
	}

	return nil
}
