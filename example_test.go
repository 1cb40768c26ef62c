package abacus_test

import (
	"errors"
	"fmt"

	"github.com/nikiz24/abacus"
	"github.com/nikiz24/abacus/guid"
)

func Example() {
	ab, err := abacus.New(2, 3, 1)
	if err != nil {
		panic(err)
	}
	defer ab.Close()

	_ = ab.EventAdd(1, 0)
	_ = ab.EventAdd(1, 0)
	n, _ := ab.EventCount(1, 0)
	fmt.Println("events:", n)

	id := guid.New()
	_ = ab.TaskBegin(id)
	_ = ab.TaskStart(id, 0, 0)
	_ = ab.TaskEnd(id, 0, 0)
	_ = ab.TaskFinish(id)

	done, _ := ab.TaskCount(0, 0)
	fmt.Println("tasks:", done)

	err = ab.TaskFinish(id)
	fmt.Println("finish again:", errors.Is(err, abacus.ErrNotFound))

	// Output:
	// events: 2
	// tasks: 1
	// finish again: true
}
