package bitslab_test

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/bitslab"
	"github.com/hupe1980/bitslab/container"
)

// Example demonstrates a 4-bit array stored in a symbol's bit-vector.
func Example() {
	st, err := bitslab.New()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	sym := st.Create()
	arr := container.NewArray(st.Root(sym), 0, 4)
	arr.InsertAt(0, 0xA)
	arr.InsertAt(1, 0x5)

	fmt.Println(arr.Values(), st.Vector(sym).Size())
	// Output: [10 5] 8
}

// ExampleStore_Intern demonstrates content deduplication of symbols.
func ExampleStore_Intern() {
	st, err := bitslab.New()
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	word := func(v uint64) bitslab.Symbol {
		sym := st.Create()
		vec := st.Vector(sym)
		vec.Grow(0, 64)
		vec.Write(0, 64, v)
		return sym
	}

	set := container.NewSet(st.Root(st.Create()), 0, 64, 0)
	first, _ := st.Intern(set, word(7))
	again, inserted := st.Intern(set, word(7))

	fmt.Println(first == again, inserted, set.Len())
	// Output: true false 1
}

// ExampleLoad demonstrates saving a Store image and loading it back.
func ExampleLoad() {
	ctx := context.Background()

	st, err := bitslab.New()
	if err != nil {
		log.Fatal(err)
	}
	sym := st.Create()
	st.Vector(sym).Grow(0, 12)
	st.Vector(sym).Write(0, 12, 0xABC)

	var buf bytes.Buffer
	if _, err := st.SaveImage(ctx, &buf); err != nil {
		log.Fatal(err)
	}
	_ = st.Close()

	restored, err := bitslab.Load(ctx, &buf)
	if err != nil {
		log.Fatal(err)
	}
	defer restored.Close()

	fmt.Printf("%#x\n", restored.Vector(sym).Read(0, 12))
	// Output: 0xabc
}
