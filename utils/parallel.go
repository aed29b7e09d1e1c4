package utils

import "fmt"

// PartitionMap statically slices the node index range [0,MaxIndex) into
// ParallelDegree contiguous buckets with a maximum imbalance of one node.
// Every parallel phase of the solver walks its own bucket, so the map is
// computed once and shared read-only by all workers.
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int // Beginning and end node index of each bucket
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	var (
		Npart            = pm.MaxIndex / pm.ParallelDegree
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first buckets evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (iMin, iMax int) {
	iMin, iMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bucketNum int) (size int) {
	if bucketNum == -1 {
		size = pm.MaxIndex
		return
	}
	i1, i2 := pm.GetBucketRange(bucketNum)
	size = i2 - i1
	return
}

// GetBucket locates the bucket owning a global node index.
func (pm *PartitionMap) GetBucket(node int) (bucketNum, min, max int) {
	// Initial guess, then walk toward the owning bucket
	bucketNum = int(float64(pm.ParallelDegree*node) / float64(pm.MaxIndex))
	for !(pm.Partitions[bucketNum][0] <= node && pm.Partitions[bucketNum][1] > node) {
		if pm.Partitions[bucketNum][0] > node {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			return -1, 0, 0
		}
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

// DynBuffer is an append-only message buffer reused across deliveries.
type DynBuffer[T any] struct {
	cells []T
}

func NewDynBuffer[T any](sizeEstimate int) *DynBuffer[T] {
	return &DynBuffer[T]{cells: make([]T, 0, sizeEstimate)}
}

func (db *DynBuffer[T]) Add(msg T)  { db.cells = append(db.cells, msg) }
func (db *DynBuffer[T]) Cells() []T { return db.cells }
func (db *DynBuffer[T]) Reset()     { db.cells = db.cells[:0] }

// MailBox carries typed messages between partition workers. The pattern
// per phase is: for range messages {PostMessage}; DeliverMyMessages;
// barrier; ReceiveMyMessages; ClearMyMessages.
type MailBox[T any] struct {
	NP           int
	MessageChans []chan *DynBuffer[T]    // One per worker
	PostMsgQs    []map[int]*DynBuffer[T] // One per worker, key is target worker
	ReceiveMsgQs []*DynBuffer[T]
	MailFlag     []bool // Worker has messages in its outbox
}

func NewMailBox[T any](NP int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:           NP,
		MessageChans: make([]chan *DynBuffer[T], NP),
		PostMsgQs:    make([]map[int]*DynBuffer[T], NP),
		ReceiveMsgQs: make([]*DynBuffer[T], NP),
		MailFlag:     make([]bool, NP),
	}
	for n := 0; n < NP; n++ {
		mb.MessageChans[n] = make(chan *DynBuffer[T], NP) // Worst case is all-to-all
		mb.PostMsgQs[n] = make(map[int]*DynBuffer[T])
		mb.ReceiveMsgQs[n] = NewDynBuffer[T](0)
	}
	return mb
}

func (mb *MailBox[T]) PostMessage(myWorker, targetWorker int, msg T) {
	tgt, exists := mb.PostMsgQs[myWorker][targetWorker]
	if !exists {
		tgt = NewDynBuffer[T](0)
		mb.PostMsgQs[myWorker][targetWorker] = tgt
	}
	tgt.Add(msg)
	mb.MailFlag[myWorker] = true
}

func (mb *MailBox[T]) DeliverMyMessages(myWorker int) {
	if !mb.MailFlag[myWorker] {
		return
	}
	for targetWorker, msgBuffer := range mb.PostMsgQs[myWorker] {
		if targetWorker < 0 || targetWorker > mb.NP-1 {
			panic(fmt.Sprintf("target worker %d out of bounds", targetWorker))
		}
		mb.MessageChans[targetWorker] <- msgBuffer
	}
	mb.MailFlag[myWorker] = false
}

func (mb *MailBox[T]) ReceiveMyMessages(myWorker int) {
	for {
		select {
		case msgBuffer := <-mb.MessageChans[myWorker]:
			for _, msg := range msgBuffer.Cells() {
				mb.ReceiveMsgQs[myWorker].Add(msg)
			}
			msgBuffer.Reset() // Reset the originating buffer
		default:
			return
		}
	}
}

func (mb *MailBox[T]) ClearMyMessages(myWorker int) {
	mb.ReceiveMsgQs[myWorker].Reset()
}
