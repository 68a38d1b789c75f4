// Command oraping is a one-shot connectivity smoke test: dial a single
// Oracle endpoint, complete the connect/auth handshake, run one
// statement, and print what came back. It is the closest analog to the
// teacher's dbbouncer server bootstrap that a library module has any
// use for.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oracleco/go-ttcdriver/internal/cursor"
	"github.com/oracleco/go-ttcdriver/internal/protocol"
	"github.com/oracleco/go-ttcdriver/oracledriver"
)

func main() {
	host := flag.String("host", "localhost", "listener host")
	port := flag.Int("port", 1521, "listener port")
	service := flag.String("service", "", "service name")
	username := flag.String("user", "", "username")
	password := flag.String("password", "", "password")
	mode := flag.String("mode", "DEFAULT", "connect mode: DEFAULT, SYSDBA, SYSOPER, ...")
	sql := flag.String("sql", "SELECT 1 FROM DUAL", "statement to execute")
	timeout := flag.Duration("timeout", 10*time.Second, "overall timeout for connect, execute and fetch")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *service == "" || *username == "" {
		log.Fatal("oraping: -service and -user are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.WithFields(logrus.Fields{"host": *host, "port": *port, "service": *service}).Info("connecting")

	conn, err := oracledriver.Connect(ctx, protocol.Description{
		Addresses:   []protocol.Address{{Host: *host, Port: *port}},
		ServiceName: *service,
	}, oracledriver.Params{
		Username: *username,
		Password: *password,
		Mode:     *mode,
		Program:  "oraping",
	})
	if err != nil {
		log.WithError(err).Fatal("oraping: connect failed")
	}
	defer conn.Close(context.Background())

	log.Info("handshake complete, executing statement")

	cur := conn.Cursor()
	defer cur.Close()

	if err := cur.Execute(ctx, *sql, nil, cursor.ExecuteOptions{PrefetchRows: -1}); err != nil {
		log.WithError(err).Fatal("oraping: execute failed")
	}

	if len(cur.Description()) == 0 {
		fmt.Printf("rows affected: %d\n", cur.RowsAffected())
		return
	}

	cols := cur.Description()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	fmt.Println(strings.Join(names, "\t"))

	rows, err := cur.FetchAll(ctx)
	if err != nil {
		log.WithError(err).Fatal("oraping: fetch failed")
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
	log.WithField("rows", len(rows)).Info("done")
	os.Exit(0)
}

