package s3transfer_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/memory"
)

func Example() {
	ctx := context.Background()
	client := s3transfer.NewWithBackend(memory.New(),
		s3transfer.WithPartSize(8),
		s3transfer.WithChunkSize(4),
	)

	result, err := client.Upload(ctx, "my-bucket", "greeting.txt",
		strings.NewReader("hello, chunked world"),
		s3transfer.WithContentType("text/plain"))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("uploaded", result.Size, "bytes")

	data, err := client.Get(ctx, "my-bucket", "greeting.txt")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(string(data))
	// Output:
	// uploaded 20 bytes
	// hello, chunked world
}

func ExampleClient_UploadStream() {
	ctx := context.Background()
	client := s3transfer.NewWithBackend(memory.New(), s3transfer.WithPartSize(10))

	ch := make(chan []byte, 4)
	for _, line := range []string{"alpha\n", "beta\n", "gamma\n", "delta\n"} {
		ch <- []byte(line)
	}
	close(ch)

	result, err := client.UploadStream(ctx, "my-bucket", "lines.txt", s3transfer.FromChannel(ch))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("parts:", result.Parts)
	// Output:
	// parts: 2
}

func ExampleClient_Open() {
	ctx := context.Background()
	client := s3transfer.NewWithBackend(memory.New(), s3transfer.WithChunkSize(3))
	if err := client.Put(ctx, "my-bucket", "abc.txt", []byte("abcdefghij")); err != nil {
		fmt.Println(err)
		return
	}

	rc, meta, err := client.Open(ctx, "my-bucket", "abc.txt")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(meta.ContentLength, buf.String())
	// Output:
	// 10 abcdefghij
}
