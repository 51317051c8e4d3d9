package natsort_test

import (
	"fmt"

	"github.com/matzehuels/cbzkit/pkg/natsort"
)

func ExampleStrings() {
	pages := []string{"p2.png", "p10.png", "p1.png"}
	natsort.Strings(pages)
	fmt.Println(pages)
	// Output: [p1.png p2.png p10.png]
}

func ExampleLess() {
	fmt.Println(natsort.Less("vol2.cbz", "vol10.cbz"))
	fmt.Println(natsort.Less("Vol10.cbz", "vol2.cbz"))
	// Output:
	// true
	// false
}
