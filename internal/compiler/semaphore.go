package compiler

// semaphore bounds how many backend invocations run at once across all cache
// keys. Cache lookups and commits never take a slot.
type semaphore struct {
	slots chan struct{}
}

func newSemaphore(v int) *semaphore {
	return &semaphore{
		slots: make(chan struct{}, v),
	}
}

func (self *semaphore) acquire() {
	self.slots <- struct{}{}
}

func (self *semaphore) release() {
	<-self.slots
}

func (self *semaphore) inUse() int {
	return len(self.slots)
}

func (self *semaphore) capacity() int {
	return cap(self.slots)
}
