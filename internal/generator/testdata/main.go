package main

import (
	"fmt"
	"os"
	"strings"

	"example.com/app/store"
)

type Greeter interface {
	Greet(name string) string
}

//di:injectable factory => English{greeting: "Hello"}
type English struct {
	greeting string
}

func (e English) Greet(name string) string { return e.greeting + " " + name }

type mockGreeter struct{ calls int }

func (m *mockGreeter) Greet(name string) string {
	m.calls++
	return "mock " + name
}

//di:injectable factory => newCounter()
type Counter struct{ n int }

func newCounter() Counter { return Counter{n: 41} }

func (c *Counter) Inc() int {
	c.n++
	return c.n
}

//di:injectable factory => func() Names { return Names{"alice", "bob"} }
type Names []string

//di:injectable
type Box[T any] struct{ value T }

//di:container
type Services struct {
	//di:inject(English)
	greeter Greeter
	counter *Counter
	names   Names
	users   store.Users
	box     Box[int]
}

func main() {
	services := NewServices()
	fmt.Println(services.get_greeter().Greet("world"))
	fmt.Println(services.get_counter().Inc())
	fmt.Println(strings.Join(services.get_names(), ","))
	fmt.Println(len(services.get_users()), services.get_mut_box().value)

	mock := &mockGreeter{}
	services.set_greeter(mock)
	fmt.Println(services.get_greeter().Greet("world"), mock.calls)
	if mock.calls != 1 {
		os.Exit(1)
	}
}
