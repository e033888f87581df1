package scheduler

import (
	"encoding/binary"
	"fmt"

	"hookvault/types"
)

// ProgramID 延迟任务调度程序
var ProgramID = types.ProgramID("scheduler")

func mustFind(seeds [][]byte) (types.Pubkey, uint8) {
	addr, bump, err := types.FindProgramAddress(seeds, ProgramID)
	if err != nil {
		panic(fmt.Sprintf("scheduler address: %v", err))
	}
	return addr, bump
}

func taskQueueSeeds(name string) [][]byte {
	return [][]byte{[]byte("task_queue"), []byte(name)}
}

func queueAuthoritySeeds(queue, authority types.Pubkey) [][]byte {
	return [][]byte{[]byte("task_queue_authority"), queue.Bytes(), authority.Bytes()}
}

func taskSeeds(queue types.Pubkey, id uint16) [][]byte {
	var le [2]byte
	binary.LittleEndian.PutUint16(le[:], id)
	return [][]byte{[]byte("task"), queue.Bytes(), le[:]}
}

// TaskQueueAddress 按名字派生的队列地址
func TaskQueueAddress(name string) types.Pubkey {
	addr, _ := mustFind(taskQueueSeeds(name))
	return addr
}

// TaskQueueAuthorityAddress 队列授权记录地址
func TaskQueueAuthorityAddress(queue, authority types.Pubkey) types.Pubkey {
	addr, _ := mustFind(queueAuthoritySeeds(queue, authority))
	return addr
}

// TaskAddress 队列中编号为 id 的任务地址
func TaskAddress(queue types.Pubkey, id uint16) types.Pubkey {
	addr, _ := mustFind(taskSeeds(queue, id))
	return addr
}
