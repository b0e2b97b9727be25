package kv

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nimbuskv/nimbus/client"
	"github.com/nimbuskv/nimbus/wire"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, set := recordNamespace()
			key := client.NewKey(namespace, set, args[0])

			ttl, err := cmd.Flags().GetUint32("ttl")
			if err != nil {
				return err
			}

			if err := kvClient.PutSync(nil, key, []byte(args[1]), ttl); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the record for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, set := recordNamespace()
			key := client.NewKey(namespace, set, args[0])

			record, err := kvClient.GetSync(nil, key)
			if err != nil {
				var se *wire.ServerError
				if errors.As(err, &se) && se.Code == wire.ResultKeyNotFound {
					fmt.Printf("key=%s, found=false\n", args[0])
					return nil
				}
				return err
			}
			fmt.Printf("key=%s, generation=%d\n", args[0], record.Generation)
			for bin, value := range record.Bins {
				fmt.Printf("  %s=%s\n", bin, value)
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, set := recordNamespace()
			key := client.NewKey(namespace, set, args[0])

			if err := kvClient.DeleteSync(nil, key); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a record exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, set := recordNamespace()
			key := client.NewKey(namespace, set, args[0])

			exists, err := kvClient.ExistsSync(nil, key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, exists=%v\n", args[0], exists)
			return nil
		},
	}
	appendCmd = &cobra.Command{
		Use:   "append [key] [bin] [value]",
		Short: "Appends to a bin of a record and prints the result",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, set := recordNamespace()
			key := client.NewKey(namespace, set, args[0])

			record, err := kvClient.OperateSync(nil, key,
				wire.AppendOp(args[1], []byte(args[2])),
				wire.GetOp(args[1]),
			)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, %s=%s\n", args[0], args[1], record.Bins[args[1]])
			return nil
		},
	}
	batchGetCmd = &cobra.Command{
		Use:   "batch [key]...",
		Short: "Reads many records in one operation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, set := recordNamespace()

			records, err := kvClient.BatchGetSync(nil, namespace, set, args)
			if err != nil {
				return err
			}
			for _, rec := range records {
				if rec.Code != wire.ResultOK {
					fmt.Printf("key=%s, result=%s\n", rec.Key, rec.Code)
					continue
				}
				fmt.Printf("key=%s, generation=%d, bins=%d\n", rec.Key, rec.Record.Generation, len(rec.Record.Bins))
			}
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Streams all records of the namespace from every node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, set := recordNamespace()

			// records may arrive from several goroutines at once
			var count atomic.Int64
			err := kvClient.ScanAllSync(nil, namespace, set, func(key *client.Key, record *wire.Record) {
				fmt.Printf("key=%s, generation=%d\n", key.UserKey, record.Generation)
				count.Add(1)
			})
			if err != nil {
				return err
			}
			fmt.Printf("scanned %d records\n", count.Load())
			return nil
		},
	}
)

func init() {
	setCmd.Flags().Uint32("ttl", 0, "Record time to live in seconds (0 = no expiration)")
}
