// Package arena provides the page arena underneath the bucket allocators.
//
// The arena is a growable linear address space of 32 Ki-bit pages. Memory
// comes from anonymous mappings (off the Go heap), one chunk of pages at a
// time, optionally charged against a MemoryAcquirer.
//
//   - Acquire pops the free-list or appends a page
//   - Release shrinks the address space when the highest page is returned,
//     otherwise pushes the page onto the free-list
//   - The free-list link of a free page is stored in its first word
//
// Operations never return errors. Exceeding the memory budget or failing to
// map memory panics with an error wrapping ErrMemoryLimit or ErrMapFailed.
package arena
