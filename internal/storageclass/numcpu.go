package storageclass

import "runtime"

func numCPU() int {
	return runtime.NumCPU()
}
